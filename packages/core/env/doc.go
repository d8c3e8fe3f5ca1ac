// Package env handles environment variables and ${VAR} expansion for
// apischema definition files.
//
// It provides functionality for:
//   - Loading environment files (.env, .env.local, etc.)
//   - Variable interpolation using ${NAME} syntax
//   - Function calls using ${$name(args)} syntax, through a FuncCaller
//   - Merging variables from several sources
package env
