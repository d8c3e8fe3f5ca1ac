package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apischema/packages/import/curl"
	"github.com/abdul-hamid-achik/apischema/packages/import/openapi"
	"github.com/abdul-hamid-achik/apischema/packages/schema"
)

var (
	importOutputFlag      string
	importRootURLFlag     string
	importTagsFlag        string
	importExcludeTagsFlag string
	importOperationsFlag  string
)

var importCmd = &cobra.Command{
	Use:   "import <format> <source>",
	Short: "Generate schema files from other API descriptions",
	Long: `Generate apischema endpoint definitions from other formats.

Supported formats:
  openapi - OpenAPI 3.0/3.1 (YAML or JSON)
  curl    - a file of curl commands

Examples:
  apischema import openapi spec.yaml -o apischema.yaml
  apischema import openapi https://petstore3.swagger.io/api/v3/openapi.json
  apischema import openapi spec.yaml --tags users,auth --root-url http://localhost:3000
  apischema import curl commands.sh`,
}

var importOpenAPICmd = &cobra.Command{
	Use:   "openapi <spec-file-or-url>",
	Short: "Import from an OpenAPI specification",
	Long: `Generate one endpoint per OpenAPI operation.

Path templates become :name placeholders, required query parameters and
path parameters are filled from examples, JSON request bodies are generated
from their schema, and binary multipart fields become uploads.`,
	Args: cobra.ExactArgs(1),
	RunE: importOpenAPICommand,
}

var importCurlCmd = &cobra.Command{
	Use:   "curl <file>",
	Short: "Import from curl commands",
	Long: `Generate one endpoint per curl command in a file. Commands may span
lines with a trailing backslash. Lines starting with # are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: importCurlCommand,
}

func init() {
	importOpenAPICmd.Flags().StringVar(&importRootURLFlag, "root-url", "", "Override the root URL from the spec servers")
	importOpenAPICmd.Flags().StringVar(&importTagsFlag, "tags", "", "Keep operations with these tags (comma-separated)")
	importOpenAPICmd.Flags().StringVar(&importExcludeTagsFlag, "exclude-tags", "", "Drop operations with these tags (comma-separated)")
	importOpenAPICmd.Flags().StringVar(&importOperationsFlag, "operations", "", "Keep only these operation IDs (comma-separated)")

	importCmd.PersistentFlags().StringVarP(&importOutputFlag, "output", "o", "", "Output file path (default: stdout)")

	importCmd.AddCommand(importOpenAPICmd)
	importCmd.AddCommand(importCurlCmd)
}

func importOpenAPICommand(cmd *cobra.Command, args []string) error {
	logger := importLogger(cmd)

	opts := []openapi.Option{openapi.WithLogger(logger)}
	if importRootURLFlag != "" {
		opts = append(opts, openapi.WithRootURL(importRootURLFlag))
	}
	if tags := splitList(importTagsFlag); len(tags) > 0 {
		opts = append(opts, openapi.WithTags(tags))
	}
	if tags := splitList(importExcludeTagsFlag); len(tags) > 0 {
		opts = append(opts, openapi.WithExcludeTags(tags))
	}
	if ops := splitList(importOperationsFlag); len(ops) > 0 {
		opts = append(opts, openapi.WithOperations(ops))
	}

	doc, err := openapi.NewConverter(opts...).ConvertFile(cmd.Context(), args[0])
	if err != nil {
		return withExitCode(ExitParseError, fmt.Errorf("failed to convert OpenAPI spec: %w", err))
	}
	return writeImport(cmd, doc)
}

func importCurlCommand(cmd *cobra.Command, args []string) error {
	doc, err := curl.NewConverter(curl.WithLogger(importLogger(cmd))).ConvertFile(args[0])
	if err != nil {
		return withExitCode(ExitParseError, fmt.Errorf("failed to convert curl commands: %w", err))
	}
	return writeImport(cmd, doc)
}

func importLogger(cmd *cobra.Command) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// writeImport checks the generated endpoints and writes them as YAML, or as
// JSON when the output file ends in .json.
func writeImport(cmd *cobra.Command, doc *schema.Document) error {
	if err := schema.Validate(doc.Endpoints); err != nil {
		return withExitCode(ExitParseError, fmt.Errorf("generated definitions are invalid: %w", err))
	}

	format := schema.FormatYAML
	if importOutputFlag != "" {
		format = schema.FormatFor(importOutputFlag)
	}
	data, err := schema.Marshal(doc, format)
	if err != nil {
		return err
	}

	if importOutputFlag == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if dir := filepath.Dir(importOutputFlag); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(importOutputFlag, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d endpoints to %s\n", len(doc.Endpoints), importOutputFlag)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
