package session

import "sort"

// MCPConfigurator attaches and detaches MCP server definitions to an agent
// tool's config for a session. Implementations live outside this module.
type MCPConfigurator interface {
	Attached(inst *Instance) ([]string, error)
	Attach(inst *Instance, name string, def MCPDef) error
	Detach(inst *Instance, name string) error
}

// NamedMCP pairs an MCP definition with its config key.
type NamedMCP struct {
	Name string
	Def  MCPDef
}

// GetAvailableMCPs returns MCPs from config.toml sorted by name.
func GetAvailableMCPs() []NamedMCP {
	config, err := LoadUserConfig()
	if err != nil || config == nil {
		return nil
	}
	out := make([]NamedMCP, 0, len(config.MCPs))
	for name, def := range config.MCPs {
		out = append(out, NamedMCP{Name: name, Def: def})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetMCPDef returns a specific MCP definition by name, or nil.
func GetMCPDef(name string) *MCPDef {
	config, err := LoadUserConfig()
	if err != nil || config == nil {
		return nil
	}
	if def, ok := config.MCPs[name]; ok {
		return &def
	}
	return nil
}
