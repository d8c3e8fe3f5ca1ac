package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apischema/packages/schema"
)

var listCmd = &cobra.Command{
	Use:   "list [file|directory...]",
	Short: "List all endpoints in schema files",
	Long: `List all endpoints defined in YAML or JSON schema files.

Without arguments apischema.yaml, apischema.yml or apischema.json in the
current directory is used.

Examples:
  apischema list blog.yaml
  apischema list ./schemas/`,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	paths, err := schemaArgs(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	files, err := collectFiles(paths)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no schema files found"))
	}

	for _, file := range files {
		doc, err := schema.LoadFile(file, nil)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", file)
		if doc.RootURL != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  root: %s\n", doc.RootURL)
		}
		for _, ep := range doc.Endpoints {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s  %s %s\n", ep.Name, ep.Method, ep.Path)
			if len(ep.Uploads) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    uploads: %d\n", len(ep.Uploads))
			}
		}
	}

	return nil
}
