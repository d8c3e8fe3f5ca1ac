package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/apischema/packages/http"
	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large
// values. maxLen counts runes.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []byte:
		return fmt.Sprintf("[binary, %d bytes]", len(val))
	case []any, map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		v = string(data)
	}
	str := fmt.Sprintf("%v", v)
	if maxLen > 0 && utf8.RuneCountInString(str) > maxLen {
		return string([]rune(str)[:maxLen]) + "..."
	}
	return str
}

// ConsoleFormatter prints results to a terminal. It is safe for concurrent use.
type ConsoleFormatter struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool
	noColor bool
	maxBody int
}

var _ http.ResultReporter = (*ConsoleFormatter)(nil)

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer:  os.Stdout,
		maxBody: 2000,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithMaxBody truncates printed bodies; zero prints them whole.
func WithMaxBody(n int) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.maxBody = n
	}
}

// ReportResult prints the request line, status, body and elapsed time.
func (f *ConsoleFormatter) ReportResult(resp *http.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "%s\n", bold("-= Request =-"))
	fmt.Fprintf(f.writer, "%s %s\n", resp.Method, resp.URL)
	fmt.Fprintf(f.writer, "%s\n", bold("----------- Response -----------"))
	fmt.Fprintf(f.writer, "Status Code: %s\n", statusColor(resp)(fmt.Sprintf("%d", resp.StatusCode)))

	if f.verbose {
		for k, v := range resp.Headers {
			fmt.Fprintf(f.writer, "  %s: %s\n", k, v)
		}
	}

	fmt.Fprintf(f.writer, "Body:\n%s\n", formatValue(resp.Body, f.maxBody))
	fmt.Fprintf(f.writer, "%s\n", cyan(fmt.Sprintf("-------------- %dms --------------", resp.DurationMs())))
}

// ReportTesterError prints a tester failure for an endpoint call.
func (f *ConsoleFormatter) ReportTesterError(endpoint string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s: %v\n", red("Tester failed:"), endpoint, err)
}

// FormatResponse prints the outcome of a single call.
func (f *ConsoleFormatter) FormatResponse(name string, resp *http.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	symbol := green("✓")
	if !resp.IsSuccess() {
		symbol = red("✗")
	}

	fmt.Fprintf(f.writer, "%s %s %s %s\n", symbol, name,
		statusColor(resp)(fmt.Sprintf("%d", resp.StatusCode)),
		cyan(fmt.Sprintf("(%dms)", resp.DurationMs())))
	fmt.Fprintf(f.writer, "  %s %s\n", resp.Method, resp.URL)

	if f.verbose {
		for k, v := range resp.Headers {
			fmt.Fprintf(f.writer, "  %s: %s\n", k, v)
		}
	}

	fmt.Fprintf(f.writer, "%s\n", formatValue(resp.Body, f.maxBody))
}

// FormatValue prints an arbitrary value, such as a filtered body.
func (f *ConsoleFormatter) FormatValue(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, "%s\n", formatValue(v, 0))
}

func (f *ConsoleFormatter) FormatError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("apischema"), version)
}

func statusColor(resp *http.Response) func(a ...any) string {
	switch {
	case resp.IsSuccess():
		return color.New(color.FgGreen).SprintFunc()
	case resp.IsServerError():
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case resp.IsClientError():
		return color.New(color.FgRed).SprintFunc()
	default:
		return color.New(color.FgYellow).SprintFunc()
	}
}
