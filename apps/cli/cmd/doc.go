// Package cmd implements the apischema CLI commands using Cobra.
//
// Available commands:
//   - call: Invoke one endpoint from schema files
//   - validate: Check schema files without calling anything
//   - list: Display all endpoints defined in schema files
//   - import: Generate schema files from OpenAPI documents or curl commands
//   - init: Create a starter schema and config file
//   - version: Show apischema version information
//
// Flags fall back to APISCHEMA_* environment variables where noted.
package cmd
