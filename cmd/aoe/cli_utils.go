package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentofempires/agent-of-empires/internal/session"
)

// Output formats
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// Error codes
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeGroupNotEmpty    = "GROUP_NOT_EMPTY"
)

// Exit codes
const (
	exitFailure  = 1
	exitNotFound = 2
)

// Symbols for human-readable output
const (
	successSymbol = "✓"
	bulletSymbol  = "•"
)

// Table column widths
const (
	tableColTitle = 32
	tableColTool  = 10
	tableColID    = 8
)

// exitError is returned once the failure has already been reported, so main
// only has to set the exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// errorCode maps a core error to its CLI code and exit status.
func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return ErrCodeNotFound, exitNotFound
	case errors.Is(err, session.ErrAlreadyExists):
		return ErrCodeAlreadyExists, exitFailure
	case errors.Is(err, session.ErrPreconditionFailed):
		return ErrCodeGroupNotEmpty, exitFailure
	default:
		return ErrCodeInvalidOperation, exitFailure
	}
}

// CLIOutput handles consistent output formatting across all CLI commands
type CLIOutput struct {
	out       io.Writer
	errOut    io.Writer
	format    string
	quietMode bool
}

// NewCLIOutput creates an output handler writing to the command's streams.
func NewCLIOutput(cmd *cobra.Command, format string, quiet bool) *CLIOutput {
	if format == "" {
		format = formatText
	}
	return &CLIOutput{
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
		format:    format,
		quietMode: quiet,
	}
}

func (c *CLIOutput) structured() bool {
	return c.format == formatJSON || c.format == formatYAML
}

// Success prints a success message or the structured response
func (c *CLIOutput) Success(message string, data any) {
	if c.quietMode {
		return
	}
	if c.structured() {
		c.printStructured(data)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", successSymbol, message)
}

// Print prints data (human-readable or structured)
func (c *CLIOutput) Print(humanOutput string, data any) {
	if c.quietMode {
		return
	}
	if c.structured() {
		c.printStructured(data)
		return
	}
	fmt.Fprint(c.out, humanOutput)
}

// Fail reports err with its error code and hints, and returns the
// exitError the command should return.
func (c *CLIOutput) Fail(err error, hints []string) error {
	code, exit := errorCode(err)
	if c.structured() {
		resp := map[string]any{
			"success": false,
			"error":   err.Error(),
			"code":    code,
		}
		if len(hints) > 0 {
			resp["suggestions"] = hints
		}
		c.printStructured(resp)
	} else {
		fmt.Fprintf(c.errOut, "Error: %s\n", err)
		if len(hints) > 0 {
			fmt.Fprintf(c.errOut, "Did you mean: %s?\n", strings.Join(hints, ", "))
		}
	}
	return &exitError{code: exit, err: err}
}

func (c *CLIOutput) printStructured(data any) {
	var (
		b   []byte
		err error
	)
	if c.format == formatYAML {
		b, err = yaml.Marshal(data)
	} else {
		b, err = json.MarshalIndent(data, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: failed to format output: %v\n", err)
		return
	}
	c.out.Write(b)
}

// outputFormat picks the format from --json/--yaml flags.
func outputFormat(jsonOut, yamlOut bool) (string, error) {
	switch {
	case jsonOut && yamlOut:
		return "", errors.New("--json and --yaml are mutually exclusive")
	case jsonOut:
		return formatJSON, nil
	case yamlOut:
		return formatYAML, nil
	}
	return formatText, nil
}

// truncate shortens s to width display cells and pads it to that width.
func truncate(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

// shortID returns the display prefix of a session ID
func shortID(id string) string {
	if len(id) > tableColID {
		return id[:tableColID]
	}
	return id
}

// pluralize returns "1 session" or "N sessions"
func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
