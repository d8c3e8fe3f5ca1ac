package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for apischema.

To load completions:

Bash:
  $ source <(apischema completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ apischema completion bash > /etc/bash_completion.d/apischema
  # macOS:
  $ apischema completion bash > $(brew --prefix)/etc/bash_completion.d/apischema

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ apischema completion zsh > "${fpath[1]}/_apischema"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ apischema completion fish | source

  # To load completions for each session, execute once:
  $ apischema completion fish > ~/.config/fish/completions/apischema.fish

PowerShell:
  PS> apischema completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> apischema completion powershell > apischema.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(cmd.OutOrStdout(), true)
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

func init() {
	rootCmd.AddCommand(completionCmd)
}
