package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/researchportal/pubportal/pkg/scope"
)

// hierarchyView is the printable form of a loaded hierarchy
type hierarchyView struct {
	Version           string          `json:"version" yaml:"version"`
	ResearchInstitute string          `json:"research_institute" yaml:"research_institute"`
	ResearchDomains   []string        `json:"research_domains" yaml:"research_domains"`
	Colleges          []scope.College `json:"colleges" yaml:"colleges"`
}

func newScopeCommand(opts *options) *cobra.Command {
	var (
		file   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Validate and print the college hierarchy",
		Long: `Load the college hierarchy (from --file, the configured path or the
embedded default), validate it and print it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" && cmd.Flags().Changed("config") {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				path = cfg.Scope.HierarchyPath
			}
			h, err := scope.Load(path)
			if err != nil {
				return err
			}
			return printHierarchy(cmd.OutOrStdout(), h, format)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&file, "file", "f", "", "hierarchy YAML file")
	fs.StringVarP(&format, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

func printHierarchy(w io.Writer, h *scope.Hierarchy, format string) error {
	view := hierarchyView{
		Version:           h.Version(),
		ResearchInstitute: h.ResearchInstitute(),
		ResearchDomains:   h.ResearchDomains(),
	}
	for _, name := range h.SelectableColleges() {
		c, _ := h.College(name)
		view.Colleges = append(view.Colleges, c)
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(view)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
