package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oarkflow/fwrelease/internal/config"
)

// completionCmd generates shell completions
var completionCmd = &cobra.Command{
	Use:   "completion [shell]",
	Short: "Generate shell completions",
	Long: `Generate shell completion scripts for various shells.

The completion script must be sourced in your shell's configuration file.

Bash:
  Add the following to ~/.bashrc:
    source <(fwrelease completion bash)

Zsh:
  Save to a completion directory:
    fwrelease completion zsh > "${fpath[1]}/_fwrelease"

Fish:
  Save to the completion directory:
    fwrelease completion fish > ~/.config/fish/completions/fwrelease.fish

PowerShell:
  Add the following to your PowerShell profile:
    fwrelease completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
		return nil
	},
}

// completeReleases offers the release names of the --project release file
func completeReleases(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if project == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg, err := config.Load(config.Path(project))
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return cfg.ReleaseNames(), cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}
