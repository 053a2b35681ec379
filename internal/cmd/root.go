/*
Package cmd provides the CLI commands for fwrelease.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oarkflow/fwrelease/internal/pipeline"
)

var (
	project        string
	release        string
	build          string
	version        string
	prev           string
	user           string
	password       string
	token          string
	push           bool
	nonInteractive bool
	verbose        bool
	debug          bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fwrelease",
	Short: "Generate and publish firmware releases",
	Long: `fwrelease packages the build images of a firmware project into
release bundles as described by firmware/releases.yaml.

A Rogue release is a Python package zip holding the Rogue packages, their
config files and the selected images. A CPSW release is a tarball of the
CPSW yaml sources. With --push the repository is tagged and a GitHub
release carrying the images and bundles is created.

Example:
  fwrelease --project . --release MyRel --build latest --version v1.2.3
  fwrelease --project . --push --prev v1.2.2     # tag and publish
  fwrelease check --project .                    # validate releases.yaml
  fwrelease list --project .                     # show releases and builds`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}

		p, err := pipeline.New(pipeline.Options{
			Project:        project,
			Release:        release,
			Build:          build,
			Version:        version,
			Prev:           prev,
			User:           user,
			Password:       password,
			Token:          token,
			Push:           push,
			NonInteractive: nonInteractive,
		})
		if err != nil {
			return err
		}

		res, err := p.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("release failed: %w", err)
		}

		for _, a := range res.Artifacts {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", a.Type, a.Path)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		log.Error(err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")

	addProjectFlag(rootCmd)
	rootCmd.Flags().StringVar(&release, "release", "", "release to generate")
	rootCmd.Flags().StringVar(&build, "build", "", `build base name to include, or "latest"`)
	rootCmd.Flags().StringVar(&version, "version", "", "version of the release (i.e. v1.2.3)")
	rootCmd.Flags().StringVar(&prev, "prev", "", "previous version the release notes start from")
	rootCmd.Flags().StringVar(&user, "user", "", "GitHub username")
	rootCmd.Flags().StringVar(&password, "password", "", "GitHub password")
	rootCmd.Flags().StringVar(&token, "token", "", "GitHub token (default $GITHUB_TOKEN)")
	rootCmd.Flags().BoolVar(&push, "push", false, "tag the repository and publish the release to GitHub")
	rootCmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "fail instead of prompting for missing values")
	_ = rootCmd.RegisterFlagCompletionFunc("release", completeReleases)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

// addProjectFlag registers the required --project flag on cmd
func addProjectFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&project, "project", "", "top level directory of the firmware project")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagDirname("project")
}

func initLogging() {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else if verbose {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}
