package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how list commands render their results.
type OutputFormat string

const (
	// OutputFormatTable renders a human-readable table
	OutputFormatTable OutputFormat = "table"
	// OutputFormatJSON renders indented JSON
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML renders YAML
	OutputFormatYAML OutputFormat = "yaml"
)

// ValidateOutputFormat returns an error listing the valid formats when format is not one of them.
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q (valid: table, json, yaml)", format)
	}
}

// workspaceRow is one line of `workspaces list`.
type workspaceRow struct {
	Workspace string    `json:"workspace" yaml:"workspace"`
	PID       int       `json:"pid" yaml:"pid"`
	Port      int       `json:"port" yaml:"port"`
	StartTime time.Time `json:"startTime" yaml:"startTime"`
	Running   bool      `json:"running" yaml:"running"`
}

func writeWorkspaces(w io.Writer, rows []workspaceRow, format OutputFormat) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeWorkspaceTable(w, rows)
	}
}

func writeWorkspaceTable(w io.Writer, rows []workspaceRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No running hubs")
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"WORKSPACE", "PID", "PORT", "STARTED", "STATUS"})
	for _, r := range rows {
		status := "running"
		if !r.Running {
			status = "stale"
		}
		t.AppendRow(table.Row{
			r.Workspace,
			strconv.Itoa(r.PID),
			strconv.Itoa(r.Port),
			r.StartTime.Local().Format(time.RFC3339),
			status,
		})
	}
	t.Render()
	return nil
}
