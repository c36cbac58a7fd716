package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/agentofempires/agent-of-empires/internal/logging"
	"github.com/agentofempires/agent-of-empires/internal/session"
)

var uiLog = logging.ForComponent(logging.CompUI)

// inputMode is the prompt currently shown under the list, if any.
type inputMode int

const (
	inputNone inputMode = iota
	inputNewGroup
	inputMoveSession
)

// Messages
type loadSessionsMsg struct {
	instances []*session.Instance
	groups    []*session.Group
	err       error
}

type storageChangedMsg struct{}

// Home is the main view: the flattened group tree with sessions.
type Home struct {
	store   session.Store
	watcher *StorageWatcher
	profile string

	instances []*session.Instance
	byID      map[string]*session.Instance
	tree      *session.GroupTree
	items     []session.Item

	cursor     int
	viewOffset int
	width      int
	height     int

	keys  keyMap
	help  help.Model
	input textinput.Model
	mode  inputMode

	// moveID is the session being moved while mode == inputMoveSession
	moveID string

	err     error
	message string
}

// NewHome creates the home view. watcher may be nil.
func NewHome(store session.Store, profile string, watcher *StorageWatcher) *Home {
	ti := textinput.New()
	ti.CharLimit = 120
	ti.Prompt = "› "

	return &Home{
		store:   store,
		watcher: watcher,
		profile: profile,
		tree:    session.NewGroupTreeWithGroups(nil, nil),
		byID:    make(map[string]*session.Instance),
		keys:    defaultKeyMap(),
		help:    help.New(),
		input:   ti,
	}
}

// Init loads state and starts listening for external changes.
func (h *Home) Init() tea.Cmd {
	cmds := []tea.Cmd{h.loadSessions}
	if h.watcher != nil {
		cmds = append(cmds, listenForReloads(h.watcher))
	}
	return tea.Batch(cmds...)
}

// listenForReloads waits for a storage change notification
func listenForReloads(sw *StorageWatcher) tea.Cmd {
	return func() tea.Msg {
		if sw == nil {
			return nil
		}
		<-sw.ReloadChannel()
		return storageChangedMsg{}
	}
}

func (h *Home) loadSessions() tea.Msg {
	if h.store == nil {
		return loadSessionsMsg{err: fmt.Errorf("storage not initialized")}
	}
	instances, groups, err := h.store.LoadWithGroups()
	return loadSessionsMsg{instances: instances, groups: groups, err: err}
}

// setState replaces the model's data and rebuilds the rows.
func (h *Home) setState(instances []*session.Instance, tree *session.GroupTree) {
	h.instances = instances
	h.tree = tree
	h.byID = make(map[string]*session.Instance, len(instances))
	for _, inst := range instances {
		h.byID[inst.ID] = inst
	}
	h.rebuildItems()
}

// rebuildItems re-flattens the tree, keeping the cursor on the same row when it still exists.
func (h *Home) rebuildItems() {
	selected := h.selectedKey()
	h.items = session.FlattenTree(h.tree, h.instances)

	if selected != "" {
		for i, it := range h.items {
			if itemKey(it) == selected {
				h.cursor = i
				break
			}
		}
	}
	if h.cursor >= len(h.items) {
		h.cursor = len(h.items) - 1
	}
	if h.cursor < 0 {
		h.cursor = 0
	}
	h.syncViewport()
}

func itemKey(it session.Item) string {
	if it.IsGroup() {
		return "g:" + it.Path
	}
	return "s:" + it.SessionID
}

func (h *Home) selectedKey() string {
	if it, ok := h.selectedItem(); ok {
		return itemKey(it)
	}
	return ""
}

func (h *Home) selectedItem() (session.Item, bool) {
	if h.cursor < 0 || h.cursor >= len(h.items) {
		return session.Item{}, false
	}
	return h.items[h.cursor], true
}

// mutate runs fn against freshly loaded state and saves it, so changes made
// by the CLI since the last reload are not overwritten. On error the
// current view is kept as is.
func (h *Home) mutate(fn session.MutateFunc) {
	var instances []*session.Instance
	var tree *session.GroupTree

	if h.watcher != nil {
		h.watcher.NotifySave()
	}
	err := session.Transact(h.store, func(insts []*session.Instance, t *session.GroupTree) (bool, error) {
		instances, tree = insts, t
		return fn(insts, t)
	})
	if err != nil {
		h.setError(err)
		return
	}
	h.err = nil
	h.setState(instances, tree)
}

func (h *Home) setError(err error) {
	h.err = err
	h.message = ""
	uiLog.Debug("ui_error", slog.String("error", err.Error()))
}

// Update handles messages
func (h *Home) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h.width = msg.Width
		h.height = msg.Height
		h.help.Width = msg.Width
		h.syncViewport()
		return h, nil

	case loadSessionsMsg:
		if msg.err != nil {
			h.setError(fmt.Errorf("failed to load sessions: %w", msg.err))
			return h, nil
		}
		h.setState(msg.instances, session.NewGroupTreeWithGroups(msg.instances, msg.groups))
		return h, nil

	case storageChangedMsg:
		uiLog.Debug("ui_storage_changed")
		return h, tea.Batch(h.loadSessions, listenForReloads(h.watcher))

	case tea.KeyMsg:
		if h.mode != inputNone {
			return h.handleInputKey(msg)
		}
		return h.handleMainKey(msg)
	}
	return h, nil
}

func (h *Home) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item, hasItem := h.selectedItem()

	switch {
	case key.Matches(msg, h.keys.Quit):
		return h, tea.Quit

	case key.Matches(msg, h.keys.Up):
		if h.cursor > 0 {
			h.cursor--
			h.syncViewport()
		}

	case key.Matches(msg, h.keys.Down):
		if h.cursor < len(h.items)-1 {
			h.cursor++
			h.syncViewport()
		}

	case key.Matches(msg, h.keys.Toggle):
		if hasItem && item.IsGroup() {
			h.setCollapsed(item.Path, !item.Collapsed)
		}

	case key.Matches(msg, h.keys.Collapse):
		if !hasItem {
			break
		}
		if item.IsGroup() {
			if !item.Collapsed {
				h.setCollapsed(item.Path, true)
			}
			break
		}
		// On a session, jump to the group row that contains it
		if inst := h.byID[item.SessionID]; inst != nil && inst.GroupPath != "" {
			h.jumpToGroup(inst.GroupPath)
		}

	case key.Matches(msg, h.keys.Expand):
		if hasItem && item.IsGroup() && item.Collapsed {
			h.setCollapsed(item.Path, false)
		}

	case key.Matches(msg, h.keys.NewGroup):
		prefill := ""
		if hasItem && item.IsGroup() {
			prefill = item.Path + session.GroupSeparator
		}
		return h, h.openInput(inputNewGroup, "New group path", prefill)

	case key.Matches(msg, h.keys.Move):
		if !hasItem || item.IsGroup() {
			break
		}
		h.moveID = item.SessionID
		current := ""
		if inst := h.byID[item.SessionID]; inst != nil {
			current = inst.GroupPath
		}
		return h, h.openInput(inputMoveSession, "Move to group (empty ungroups)", current)

	case key.Matches(msg, h.keys.Delete):
		if hasItem && item.IsGroup() {
			h.deleteGroup(item.Path)
		}

	case key.Matches(msg, h.keys.Reload):
		return h, h.loadSessions

	case key.Matches(msg, h.keys.Help):
		h.help.ShowAll = !h.help.ShowAll
		h.syncViewport()
	}

	return h, nil
}

func (h *Home) setCollapsed(path string, collapsed bool) {
	h.mutate(func(_ []*session.Instance, tree *session.GroupTree) (bool, error) {
		if !tree.GroupExists(path) {
			return false, fmt.Errorf("group %q: %w", path, session.ErrNotFound)
		}
		tree.SetCollapsed(path, collapsed)
		return true, nil
	})
}

func (h *Home) jumpToGroup(path string) {
	for i, it := range h.items {
		if it.IsGroup() && it.Path == path {
			h.cursor = i
			h.syncViewport()
			return
		}
	}
}

func (h *Home) deleteGroup(path string) {
	h.mutate(func(instances []*session.Instance, tree *session.GroupTree) (bool, error) {
		_, err := session.DeleteGroupChecked(tree, instances, path, false)
		if errors.Is(err, session.ErrPreconditionFailed) {
			return false, fmt.Errorf("group %q is not empty; move its sessions first", path)
		}
		return err == nil, err
	})
	if h.err == nil {
		h.message = fmt.Sprintf("Deleted group %s", path)
	}
}

func (h *Home) openInput(mode inputMode, placeholder, value string) tea.Cmd {
	h.mode = mode
	h.err = nil
	h.input.Placeholder = placeholder
	h.input.SetValue(value)
	h.input.CursorEnd()
	h.syncViewport()
	return h.input.Focus()
}

func (h *Home) closeInput() {
	h.mode = inputNone
	h.moveID = ""
	h.input.Blur()
	h.input.SetValue("")
	h.syncViewport()
}

func (h *Home) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		h.closeInput()
		return h, nil
	case "enter":
		value := h.input.Value()
		mode, moveID := h.mode, h.moveID
		h.closeInput()
		switch mode {
		case inputNewGroup:
			h.createGroup(value)
		case inputMoveSession:
			h.moveSession(moveID, value)
		}
		return h, nil
	}

	var cmd tea.Cmd
	h.input, cmd = h.input.Update(msg)
	return h, cmd
}

func (h *Home) createGroup(raw string) {
	path, err := session.ValidateGroupPath(raw)
	if err != nil {
		h.setError(err)
		return
	}
	h.mutate(func(_ []*session.Instance, tree *session.GroupTree) (bool, error) {
		return true, session.CreateGroupChecked(tree, path)
	})
	if h.err == nil {
		h.message = fmt.Sprintf("Created group %s", path)
		h.jumpToGroup(path)
	}
}

func (h *Home) moveSession(id, raw string) {
	target := ""
	if strings.TrimSpace(raw) != "" {
		p, err := session.ValidateGroupPath(raw)
		if err != nil {
			h.setError(err)
			return
		}
		target = p
	}
	h.mutate(func(instances []*session.Instance, tree *session.GroupTree) (bool, error) {
		for _, inst := range instances {
			if inst.ID == id {
				session.MoveSession(tree, inst, target)
				return true, nil
			}
		}
		return false, fmt.Errorf("session %q: %w", id, session.ErrNotFound)
	})
}

// chromeHeight is the number of lines View uses outside the list.
func (h *Home) chromeHeight() int {
	lines := 3 // title, blank, footer status line
	if h.help.ShowAll {
		lines += 6
	} else {
		lines += 2
	}
	if h.mode != inputNone {
		lines += 3
	}
	return lines
}

// syncViewport keeps the cursor inside the visible window.
func (h *Home) syncViewport() {
	visible := h.visibleRows()
	if visible <= 0 {
		h.viewOffset = 0
		return
	}
	if h.cursor < h.viewOffset {
		h.viewOffset = h.cursor
	}
	if h.cursor >= h.viewOffset+visible {
		h.viewOffset = h.cursor - visible + 1
	}
	if maxOffset := len(h.items) - visible; h.viewOffset > maxOffset {
		h.viewOffset = maxOffset
	}
	if h.viewOffset < 0 {
		h.viewOffset = 0
	}
}

// visibleRows returns how many list rows fit, or 0 if the size is unknown.
func (h *Home) visibleRows() int {
	if h.height == 0 {
		return 0
	}
	if v := h.height - h.chromeHeight(); v > 1 {
		return v
	}
	return 1
}

// View renders the screen.
func (h *Home) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Agent of Empires"))
	b.WriteString(DimStyle.Render(fmt.Sprintf("  profile: %s  sessions: %d  groups: %d",
		h.profile, len(h.instances), h.tree.GroupCount())))
	b.WriteString("\n\n")

	if len(h.items) == 0 {
		b.WriteString(DimStyle.Render("No sessions or groups yet. Press g to create a group."))
		b.WriteString("\n")
	}

	start, end := 0, len(h.items)
	if visible := h.visibleRows(); visible > 0 && end > visible {
		start = h.viewOffset
		end = min(start+visible, len(h.items))
	}
	for i := start; i < end; i++ {
		b.WriteString(h.renderRow(h.items[i], i == h.cursor))
		b.WriteString("\n")
	}

	if h.mode != inputNone {
		b.WriteString("\n")
		b.WriteString(DialogBoxStyle.Render(h.input.View()))
		b.WriteString("\n")
	}

	switch {
	case h.err != nil:
		b.WriteString(ErrorStyle.Render("Error: " + h.err.Error()))
	case h.message != "":
		b.WriteString(SuccessStyle.Render(h.message))
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(h.help.View(h.keys)))

	return b.String()
}

func (h *Home) renderRow(it session.Item, selected bool) string {
	indent := strings.Repeat("  ", it.Depth)
	width := h.width
	if width <= 0 {
		width = 80
	}

	if it.IsGroup() {
		arrow := "▾"
		if it.Collapsed {
			arrow = "▸"
		}
		name := runewidth.Truncate(it.Name, max(width-runewidth.StringWidth(indent)-12, 8), "…")
		if selected {
			return SelectedStyle.Render(fmt.Sprintf("%s%s %s (%d)", indent, arrow, name, it.SessionCount))
		}
		return indent + GroupExpandStyle.Render(arrow) + " " +
			GroupNameStyle.Render(name) + " " +
			GroupCountStyle.Render(fmt.Sprintf("(%d)", it.SessionCount))
	}

	inst := h.byID[it.SessionID]
	if inst == nil {
		return indent + DimStyle.Render(it.SessionID)
	}
	title := inst.Title
	if title == "" {
		title = inst.ID
	}
	title = runewidth.Truncate(title, max(width-runewidth.StringWidth(indent)-len(inst.Tool)-6, 8), "…")
	if selected {
		return SelectedStyle.Render(fmt.Sprintf("%s%s %s  %s", indent, StatusSymbol(inst.Status), title, inst.Tool))
	}
	return indent + StatusIndicator(inst.Status) + " " +
		SessionTitleStyle.Render(title) + "  " + DimStyle.Render(inst.Tool)
}
