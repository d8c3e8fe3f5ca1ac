package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apischema/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new apischema project",
	Long: `Initialize a new apischema project in the current directory.

This creates:
  - .apischema.config.json  - Client configuration
  - apischema.yaml          - Example endpoint schema

Examples:
  apischema init
  apischema init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSchema = `# Endpoints are called by name: apischema call <name>
# rootUrl comes from .apischema.config.json unless set here, for example
# rootUrl: ${API_ROOT_URL}
showResult: false

endpoints:
  - name: listPosts
    path: /posts
    method: GET
    queryString:
      page: 1

  - name: getPost
    path: /posts/:postId
    method: GET
    pathParams:
      postId: 1

  - name: newPost
    path: /posts
    method: POST
    body:
      title: Hello
      body: Created by apischema

  - name: uploadCover
    path: /posts/:postId/cover
    method: POST
    pathParams:
      postId: 1
    body:
      caption: Cover image
    uploads:
      - fieldName: image
        sourcePath: ./cover.png
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, ".apischema.config.json")
	schemaFile := filepath.Join(cwd, "apischema.yaml")

	if !forceInit {
		for _, f := range []string{configFile, schemaFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.RootURL = "http://localhost:3000"
	cfg.Headers = map[string]string{
		"User-Agent": "apischema/" + version,
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(schemaFile, []byte(exampleSchema), 0644); err != nil {
		return fmt.Errorf("failed to create schema file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", schemaFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\napischema project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'apischema list' to see the endpoints and 'apischema call listPosts' to call one.\n")

	return nil
}
