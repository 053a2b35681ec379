package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/oarkflow/fwrelease"
	"github.com/oarkflow/fwrelease/internal/config"
	"github.com/oarkflow/fwrelease/internal/pipeline"
	"github.com/oarkflow/fwrelease/internal/schema"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the release file",
	Long: `Check if firmware/releases.yaml of a project is valid.

This validates:
  - YAML syntax
  - Known keys and value types
  - Release types
  - Required Releases and Targets
  - Include statements`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := afero.NewOsFs()
		path := config.Path(project)

		if exists, _ := afero.Exists(fs, path); !exists {
			return fmt.Errorf("%w: %s not found", config.ErrLoad, path)
		}

		res := schema.ValidateConfig(fs, path)
		if !res.Valid {
			return fmt.Errorf("%w: %s: %s", config.ErrValidation, path, res.Error())
		}

		p, err := pipeline.New(pipeline.Options{Project: project, NonInteractive: true})
		if err != nil {
			return err
		}
		cfg := p.Config()

		for _, name := range cfg.ReleaseNames() {
			if err := cfg.ValidateRelease(name); err != nil {
				return err
			}
			for _, target := range cfg.Releases[name].Targets {
				if err := cfg.ValidateTarget(target); err != nil {
					return err
				}
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Release file %s is valid\n", path)
		fmt.Fprintf(out, "  Releases: %s\n", strings.Join(cfg.ReleaseNames(), ", "))
		fmt.Fprintf(out, "  Targets:  %s\n", strings.Join(sortedKeys(cfg.Targets), ", "))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List releases and available builds",
	Long: `List every release of the project with its targets, types and the
builds found in each target's image directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pipeline.New(pipeline.Options{Project: project, NonInteractive: true})
		if err != nil {
			return err
		}
		cfg := p.Config()
		sel := p.Selector()
		out := cmd.OutOrStdout()

		for _, name := range cfg.ReleaseNames() {
			rel := cfg.Releases[name]
			fmt.Fprintf(out, "%s (%s)\n", name, strings.Join(rel.Types, ", "))

			for _, target := range rel.Targets {
				builds, err := sel.Candidates(target)
				if err != nil {
					fmt.Fprintf(out, "  %s: %v\n", target, err)
					continue
				}
				if len(builds) == 0 {
					fmt.Fprintf(out, "  %s: no builds\n", target)
					continue
				}
				fmt.Fprintf(out, "  %s:\n", target)
				for i, b := range builds {
					fmt.Fprintf(out, "    %d: %s\n", i, b)
				}
			}
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build date of fwrelease.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "fwrelease %s\n", fwrelease.Version)
		if fwrelease.GitCommit != "" {
			fmt.Fprintf(out, "  Commit: %s\n", fwrelease.GitCommit)
		}
		if fwrelease.BuildDate != "" {
			fmt.Fprintf(out, "  Built:  %s\n", fwrelease.BuildDate)
		}
	},
}

func init() {
	addProjectFlag(checkCmd)
	addProjectFlag(listCmd)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
