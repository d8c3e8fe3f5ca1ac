package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apischema/packages/body"
	"github.com/abdul-hamid-achik/apischema/packages/builtin"
	"github.com/abdul-hamid-achik/apischema/packages/core/config"
	"github.com/abdul-hamid-achik/apischema/packages/core/env"
	"github.com/abdul-hamid-achik/apischema/packages/expect"
	"github.com/abdul-hamid-achik/apischema/packages/http"
	"github.com/abdul-hamid-achik/apischema/packages/output"
	"github.com/abdul-hamid-achik/apischema/packages/params"
	"github.com/abdul-hamid-achik/apischema/packages/schema"
)

var callCmd = &cobra.Command{
	Use:   "call <endpoint>",
	Short: "Call one endpoint defined in schema files",
	Long: `Call a named endpoint from one or more schema files.

Examples:
  apischema call newPost -s blog.yaml
  apischema call getPost -s blog.yaml -p postId=2
  apischema call search -s blog.yaml -q term=go -q page=2
  apischema call newPost -s blog.yaml -b '{"title":"hello"}' -f image=./cat.png
  apischema call getPost -s blog.yaml --expect-status 200 --expect 'body.id exists'
  apischema call listPosts -s blog.yaml --jq '.[].title'`,
	Args: cobra.ExactArgs(1),
	RunE: callCommand,
}

var (
	schemaFlag       []string
	rootURLFlag      string
	configFlag       string
	envFileFlag      string
	varFlag          keyValueFlag
	pathParamFlag    keyValueFlag
	queryFlag        keyValueFlag
	bodyFlag         string
	uploadFlag       keyValueFlag
	showResultFlag   bool
	expectFlag       []string
	expectStatusFlag int
	jqFlag           string
	outputFlag       string
	timeoutFlag      string
	proxyFlag        string
	insecureFlag     bool
	verboseFlag      int
	noColorFlag      bool
	dryRunFlag       bool
	headerFlag       keyValueFlag
	maxBodyFlag      int
)

func init() {
	callCmd.Flags().StringSliceVarP(&schemaFlag, "schema", "s", getEnvList("APISCHEMA_SCHEMA", nil), "Schema files or directories (env: APISCHEMA_SCHEMA)")
	callCmd.Flags().StringVar(&rootURLFlag, "root-url", getEnvString("APISCHEMA_ROOT_URL", ""), "Override the root URL of every endpoint (env: APISCHEMA_ROOT_URL)")
	callCmd.Flags().StringVar(&configFlag, "config", getEnvString("APISCHEMA_CONFIG", ""), "Path to config file (env: APISCHEMA_CONFIG)")
	callCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("APISCHEMA_ENV_FILE", ""), "Path to .env file for ${VAR} interpolation (env: APISCHEMA_ENV_FILE)")
	callCmd.Flags().Var(&varFlag, "var", "Variable for ${VAR} interpolation (repeatable)")

	// Call-time overrides
	callCmd.Flags().VarP(&pathParamFlag, "path-param", "p", "Path parameter (repeatable)")
	callCmd.Flags().VarP(&queryFlag, "query", "q", "Query string parameter; replaces the static query string (repeatable)")
	callCmd.Flags().StringVarP(&bodyFlag, "body", "b", "", "JSON object replacing the static body")
	callCmd.Flags().VarP(&uploadFlag, "file", "f", "Upload as field=path; POST only (repeatable)")

	// Checks
	callCmd.Flags().StringArrayVar(&expectFlag, "expect", nil, "Expectation such as 'status == 200' or 'body.id exists' (repeatable)")
	callCmd.Flags().IntVar(&expectStatusFlag, "expect-status", 0, "Expected status code")

	// Output flags
	callCmd.Flags().BoolVar(&showResultFlag, "show-result", getEnvBool("APISCHEMA_SHOW_RESULT", false), "Print request, status, body and elapsed time (env: APISCHEMA_SHOW_RESULT)")
	callCmd.Flags().StringVar(&jqFlag, "jq", "", "jq filter applied to the response body")
	callCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("APISCHEMA_OUTPUT", "console"), "Output format: console, json (env: APISCHEMA_OUTPUT)")
	callCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v headers, -vv debug logs)")
	callCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("APISCHEMA_NO_COLOR", false), "Disable colored output (env: APISCHEMA_NO_COLOR)")
	callCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Resolve the URL and body and print them without calling")
	callCmd.Flags().IntVar(&maxBodyFlag, "max-body", getEnvInt("APISCHEMA_MAX_BODY", 2000), "Truncate printed bodies to this many characters, 0 for no limit (env: APISCHEMA_MAX_BODY)")

	// Network flags
	callCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("APISCHEMA_TIMEOUT", ""), "Request timeout such as 30s or 1m (env: APISCHEMA_TIMEOUT)")
	callCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("APISCHEMA_PROXY", ""), "Proxy URL for HTTP requests (env: APISCHEMA_PROXY)")
	callCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("APISCHEMA_INSECURE", false), "Disable SSL certificate validation (env: APISCHEMA_INSECURE)")
	callCmd.Flags().VarP(&headerFlag, "header", "H", "Default header as name=value, added to the config file headers (repeatable)")
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResponse(name string, resp *http.Response)
	FormatValue(v any)
	FormatError(err error)
	FormatHeader(version string)
}

func callCommand(cmd *cobra.Command, args []string) error {
	name := args[0]
	out := cmd.OutOrStdout()

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}
	overrides, err := flagConfig()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	cfg := fileConfig.Merge(overrides)

	logger := newLogger(cmd.ErrOrStderr(), verboseFlag)
	verbose := cfg.GetVerbose()

	jsonOutput := strings.EqualFold(outputFlag, "json")

	// with JSON output the console only carries reports, so keep stdout clean
	reportWriter := out
	if jsonOutput {
		reportWriter = cmd.ErrOrStderr()
	}
	console := output.NewConsoleFormatter(
		output.WithWriter(reportWriter),
		output.WithVerbose(verbose),
		output.WithNoColor(cfg.GetNoColor()),
		output.WithMaxBody(maxBodyFlag),
	)

	var formatter Formatter = console
	switch strings.ToLower(outputFlag) {
	case "json":
		formatter = output.NewJSONFormatter(output.JSONWithWriter(out))
	case "console":
	default:
		return withExitCode(ExitUsageError, fmt.Errorf("unknown output format %q", outputFlag))
	}
	if verbose {
		formatter.FormatHeader(version)
	}

	reg, err := loadRegistry(cfg, console, logger)
	if err != nil {
		return err
	}

	if _, ok := reg.Definition(name); !ok {
		return withExitCode(ExitUsageError, fmt.Errorf("%w: %q (available: %s)", schema.ErrUnknownEndpoint, name, strings.Join(reg.Names(), ", ")))
	}

	callParams, err := buildCallParams()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if dryRunFlag {
		plan, err := reg.Plan(name, callParams)
		if err != nil {
			return withExitCode(callErrorCode(err), err)
		}
		defer plan.Close()
		return printPlan(out, plan)
	}

	responseChecks, bodyChecks, err := parseExpectations()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	var testerErr error
	if len(bodyChecks) > 0 {
		check := expect.Tester(bodyChecks...)
		callParams.Tester = func(v any) error {
			testerErr = check(v)
			return testerErr
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := reg.Call(ctx, name, callParams)
	if err != nil {
		formatter.FormatError(err)
		return withExitCode(callErrorCode(err), err)
	}

	if jqFlag != "" {
		if err := runJQ(ctx, jqFlag, resp.Body, formatter); err != nil {
			return withExitCode(ExitUsageError, err)
		}
	} else if jsonOutput || !reg.Options().ShowResult {
		formatter.FormatResponse(name, resp)
	}

	if failed := expect.Failed(expect.EvaluateAll(resp, responseChecks)); failed != nil {
		formatter.FormatError(failed)
		testerErr = errors.Join(failed, testerErr)
	}
	if testerErr != nil {
		return withExitCode(ExitTestFailure, fmt.Errorf("expectations failed for %s: %w", name, testerErr))
	}

	return nil
}

func newLogger(w io.Writer, verbosity int) *slog.Logger {
	level := slog.LevelWarn
	if verbosity >= 2 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// flagConfig collects the settings given as flags or APISCHEMA_* variables.
// Unset flags stay empty so Merge keeps the config file values. --root-url
// is applied separately because it also overrides the schema files.
func flagConfig() (*config.Config, error) {
	c := &config.Config{
		Proxy:   proxyFlag,
		EnvFile: envFileFlag,
		Headers: headerFlag.Map(),
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		c.Timeout = int(d.Milliseconds())
	}
	if showResultFlag {
		c.ShowResult = config.BoolPtr(true)
	}
	if insecureFlag {
		c.ValidateSSL = config.BoolPtr(false)
	}
	if verboseFlag > 0 {
		c.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		c.NoColor = config.BoolPtr(true)
	}
	return c, nil
}

// loadRegistry reads the schema files and builds a registry wired to the
// configured HTTP client.
func loadRegistry(cfg *config.Config, reporter schema.Reporter, logger *slog.Logger) (*schema.Registry, error) {
	paths, err := schemaArgs(schemaFlag)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	files, err := collectFiles(paths)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("no schema files found"))
	}

	resolver, err := variableResolver(cfg, logger)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}

	doc, err := schema.LoadFiles(resolver, files...)
	if err != nil {
		return nil, withExitCode(ExitParseError, err)
	}

	opts := doc.Options()
	if opts.RootURL == "" {
		opts.RootURL = cfg.RootURL
	}
	if rootURLFlag != "" {
		opts.RootURL = rootURLFlag
	}
	opts.ShowResult = opts.ShowResult || cfg.GetShowResult()

	reg, err := schema.Build(doc.Endpoints, opts,
		schema.WithSender(newClient(cfg)),
		schema.WithFiles(body.OSFiles{}),
		schema.WithReporter(reporter),
		schema.WithLogger(logger),
	)
	if err != nil {
		if errors.Is(err, schema.ErrInvalidOptions) {
			return nil, withExitCode(ExitConfigError, err)
		}
		return nil, withExitCode(ExitParseError, err)
	}
	return reg, nil
}

func variableResolver(cfg *config.Config, logger *slog.Logger) (*env.Resolver, error) {
	var dotenv map[string]string
	if cfg.EnvFile != "" {
		vars, err := env.LoadAndExportDotEnv(cfg.EnvFile)
		if err != nil {
			return nil, err
		}
		dotenv = vars
	}

	resolver := env.NewResolver()
	resolver.SetVariables(env.MergeVariables(dotenv, varFlag.Map()))
	resolver.SetFuncs(builtin.NewRegistry())
	resolver.SetWarnFunc(func(format string, args ...any) {
		logger.Warn(fmt.Sprintf(format, args...))
	})
	return resolver, nil
}

func newClient(cfg *config.Config) *http.Client {
	opts := []http.ClientOption{
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithDefaultHeaders(cfg.Headers),
		http.WithProxy(cfg.Proxy),
	}
	if timeout := cfg.TimeoutDuration(); timeout > 0 {
		opts = append(opts, http.WithTimeout(timeout))
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	return http.NewClient(opts...)
}

// printPlan shows what a call would send: the request line, the timeout
// when the endpoint sets one, and the body.
func printPlan(w io.Writer, plan *schema.Plan) error {
	fmt.Fprintf(w, "Would call: %s %s\n", plan.Method, plan.URL)
	if plan.Timeout > 0 {
		fmt.Fprintf(w, "Timeout: %s\n", plan.Timeout)
	}

	switch p := plan.Payload.(type) {
	case nil:
	case *body.JSON:
		data, err := json.Marshal(p.Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Content-Type: %s\nBody: %s\n", p.ContentType(), data)
	case *body.Multipart:
		fmt.Fprintf(w, "Content-Type: multipart/form-data\n")
		for _, u := range p.Uploads() {
			fmt.Fprintf(w, "  file %s: %s (%s)\n", u.FieldName, u.SourcePath, u.MediaType())
		}
		for _, f := range p.Fields() {
			fmt.Fprintf(w, "  field %s: %s\n", f.Name, f.Value)
		}
	default:
		fmt.Fprintf(w, "Content-Type: %s\n", p.ContentType())
	}
	return nil
}

func buildCallParams() (*schema.CallParams, error) {
	p := &schema.CallParams{
		QueryString: queryFlag.Params(),
		PathParams:  pathParamFlag.Params(),
	}

	if bodyFlag != "" {
		var values map[string]any
		if err := json.Unmarshal([]byte(bodyFlag), &values); err != nil {
			return nil, fmt.Errorf("--body must be a JSON object: %w", err)
		}
		p.Body = values
	}

	for _, u := range uploadFlag.pairs {
		p.Uploads = append(p.Uploads, body.Upload{
			FieldName:  u.Name,
			SourcePath: fmt.Sprint(u.Value),
		})
	}

	return p, nil
}

// parseExpectations splits expectations into those that need the whole
// response (status, headers, duration) and those that only read the body.
func parseExpectations() (response, bodyOnly []*expect.Assertion, err error) {
	if expectStatusFlag != 0 {
		response = append(response, &expect.Assertion{Subject: "status", Operator: expect.OpEquals, Expected: expectStatusFlag})
	}
	for _, expr := range expectFlag {
		a, err := expect.Parse(expr)
		if err != nil {
			return nil, nil, err
		}
		if a.Subject == "status" || a.Subject == "duration" || strings.HasPrefix(a.Subject, "header") {
			response = append(response, a)
		} else {
			bodyOnly = append(bodyOnly, a)
		}
	}
	return response, bodyOnly, nil
}

func callErrorCode(err error) int {
	switch {
	case errors.Is(err, http.ErrTransport):
		return ExitNetworkError
	case errors.Is(err, params.ErrMissingParameter),
		errors.Is(err, params.ErrUnresolvedPathParameter),
		errors.Is(err, schema.ErrUnknownEndpoint),
		errors.Is(err, body.ErrOpenUpload):
		return ExitUsageError
	default:
		return ExitTestFailure
	}
}

func runJQ(ctx context.Context, filter string, v any, formatter Formatter) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("invalid jq filter: %w", err)
	}

	if raw, ok := v.([]byte); ok {
		v = string(raw)
	}

	iter := query.RunWithContext(ctx, v)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := result.(error); ok {
			return fmt.Errorf("jq: %w", err)
		}
		formatter.FormatValue(result)
	}
}
