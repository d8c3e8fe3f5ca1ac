// Package output provides formatters for displaying call results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output, also used to show
//     every dispatched result when result reporting is enabled
//   - JSON: Machine-readable JSON output of the normalized response
package output
