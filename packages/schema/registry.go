package schema

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/abdul-hamid-achik/apischema/packages/body"
	"github.com/abdul-hamid-achik/apischema/packages/http"
	"github.com/abdul-hamid-achik/apischema/packages/output"
	"github.com/abdul-hamid-achik/apischema/packages/params"
)

var namePattern = regexp.MustCompile(`^\w+$`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Options are shared by every endpoint of a registry.
type Options struct {
	RootURL    string `json:"rootUrl" yaml:"rootUrl" validate:"required,url"`
	ShowResult bool   `json:"showResult,omitempty" yaml:"showResult,omitempty"`
}

// Tester inspects the parsed response body of a call. Its error or panic is
// reported but never changes the outcome of the call.
type Tester func(body any) error

// CallParams are the optional call-time overrides for an Action.
type CallParams struct {
	QueryString *params.Set
	PathParams  *params.Set
	Body        map[string]any
	Uploads     []body.Upload
	Tester      Tester
}

// QueryFrom replaces the call-time query string with the fields of v, named
// by their `schema` tags.
func (p *CallParams) QueryFrom(v any) error {
	set, err := params.FromStruct(v)
	if err != nil {
		return fmt.Errorf("query string: %w", err)
	}
	p.QueryString = set
	return nil
}

// PathFrom replaces the call-time path parameters with the fields of v,
// named by their `schema` tags.
func (p *CallParams) PathFrom(v any) error {
	set, err := params.FromStruct(v)
	if err != nil {
		return fmt.Errorf("path parameters: %w", err)
	}
	p.PathParams = set
	return nil
}

// Action performs one call of a registered endpoint.
type Action func(ctx context.Context, p *CallParams) (*http.Response, error)

// Reporter shows call results and tester failures.
type Reporter interface {
	http.ResultReporter
	ReportTesterError(endpoint string, err error)
}

var _ Reporter = (*output.ConsoleFormatter)(nil)

// Registry maps endpoint names to bound actions.
type Registry struct {
	options    Options
	names      []string
	defs       map[string]Endpoint
	actions    map[string]Action
	resolver   *params.Resolver
	assembler  *body.Assembler
	dispatcher *http.Dispatcher
	reporter   Reporter
	logger     *slog.Logger
}

type buildConfig struct {
	sender   http.Sender
	files    body.Files
	reporter Reporter
	logger   *slog.Logger
}

type Option func(*buildConfig)

// WithSender sets the transport. Defaults to http.NewClient().
func WithSender(s http.Sender) Option {
	return func(c *buildConfig) {
		c.sender = s
	}
}

// WithFiles sets where upload sources are opened from.
func WithFiles(f body.Files) Option {
	return func(c *buildConfig) {
		c.files = f
	}
}

// WithReporter sets where results and tester failures are shown. Defaults to
// a console formatter on stdout.
func WithReporter(r Reporter) Option {
	return func(c *buildConfig) {
		c.reporter = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *buildConfig) {
		c.logger = l
	}
}

// Build validates defs and binds one Action per endpoint. Names must match
// \w+ and be unique; the first offending definition aborts the build.
func Build(defs []Endpoint, opts Options, options ...Option) (*Registry, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	cfg := buildConfig{logger: slog.Default()}
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.sender == nil {
		cfg.sender = http.NewClient()
	}
	if cfg.reporter == nil {
		cfg.reporter = output.NewConsoleFormatter()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	r := &Registry{
		options:   opts,
		names:     make([]string, 0, len(defs)),
		defs:      make(map[string]Endpoint, len(defs)),
		actions:   make(map[string]Action, len(defs)),
		resolver:  params.NewResolver(opts.RootURL),
		assembler: body.NewAssembler(cfg.files, body.WithLogger(cfg.logger)),
		dispatcher: http.NewDispatcher(cfg.sender,
			http.WithShowResult(opts.ShowResult),
			http.WithReporter(cfg.reporter),
			http.WithLogger(cfg.logger),
		),
		reporter: cfg.reporter,
		logger:   cfg.logger,
	}

	for i, def := range defs {
		if err := checkDefinition(i, def, r.defs); err != nil {
			return nil, err
		}

		stored := def.Clone()
		r.names = append(r.names, stored.Name)
		r.defs[stored.Name] = stored
		r.actions[stored.Name] = r.bind(stored)
	}

	r.logger.Debug("registry built", "root_url", opts.RootURL, "endpoints", len(r.names))
	return r, nil
}

// Options returns the options the registry was built with.
func (r *Registry) Options() Options {
	return r.options
}

// Names lists the registered endpoints in definition order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Registry) Len() int {
	return len(r.names)
}

// Action returns the bound action for name.
func (r *Registry) Action(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Definition returns a copy of the stored definition for name.
func (r *Registry) Definition(name string) (Endpoint, bool) {
	def, ok := r.defs[name]
	if !ok {
		return Endpoint{}, false
	}
	return def.Clone(), true
}

// Call invokes the action registered under name.
func (r *Registry) Call(ctx context.Context, name string, p *CallParams) (*http.Response, error) {
	action, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}
	return action(ctx, p)
}

func checkDefinition(i int, def Endpoint, seen map[string]Endpoint) error {
	if !namePattern.MatchString(def.Name) {
		return &DefinitionError{Index: i, Name: def.Name, Err: ErrInvalidName}
	}
	if _, exists := seen[def.Name]; exists {
		return &DefinitionError{Index: i, Name: def.Name, Err: ErrDuplicateEndpoint}
	}
	if def.Timeout < 0 {
		return &DefinitionError{Index: i, Name: def.Name, Err: ErrInvalidTimeout}
	}
	return nil
}

// Validate runs the checks Build applies to names but reports every bad
// definition instead of stopping at the first.
func Validate(defs []Endpoint) error {
	var result *multierror.Error
	seen := make(map[string]Endpoint, len(defs))
	for i, def := range defs {
		if err := checkDefinition(i, def, seen); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		seen[def.Name] = def
	}
	return result.ErrorOrNil()
}

func (r *Registry) bind(def Endpoint) Action {
	return func(ctx context.Context, p *CallParams) (*http.Response, error) {
		return r.invoke(ctx, def.Clone(), p)
	}
}

// Plan is a resolved call that has not been sent. Close releases any upload
// streams the payload holds.
type Plan struct {
	Endpoint string
	Method   http.Method
	URL      string
	Payload  http.Payload
	Encoding string
	Timeout  time.Duration
}

func (p *Plan) Close() error {
	if p.Payload == nil {
		return nil
	}
	return p.Payload.Close()
}

// Plan resolves the URL and assembles the body for name exactly as Call
// would, without sending anything.
func (r *Registry) Plan(name string, p *CallParams) (*Plan, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}
	if p == nil {
		p = &CallParams{}
	}
	return r.plan(def.Clone(), p)
}

func (r *Registry) plan(def Endpoint, p *CallParams) (*Plan, error) {
	method, err := http.ParseMethod(string(def.Method))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Name, err)
	}

	url, err := r.resolver.URL(def.Path, def.QueryString, def.PathParams, p.QueryString, p.PathParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Name, err)
	}

	uploads := def.Uploads
	if p.Uploads != nil {
		uploads = p.Uploads
	}

	payload, err := r.assembler.Assemble(method, def.Body, p.Body, uploads)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Name, err)
	}

	plan := &Plan{
		Endpoint: def.Name,
		Method:   method,
		URL:      url,
		Payload:  payload,
		Timeout:  def.TimeoutDuration(),
	}
	if method == http.MethodPost {
		plan.Encoding = def.Encoding
	}
	return plan, nil
}

func (r *Registry) invoke(ctx context.Context, def Endpoint, p *CallParams) (*http.Response, error) {
	if p == nil {
		p = &CallParams{}
	}

	logger := r.logger.With("endpoint", def.Name, "call_id", uuid.NewString())

	plan, err := r.plan(def, p)
	if err != nil {
		logger.DebugContext(ctx, "cannot prepare call", "path", def.Path, "error", err)
		return nil, err
	}
	defer func() {
		if cerr := plan.Close(); cerr != nil {
			logger.WarnContext(ctx, "closing request body", "error", cerr)
		}
	}()

	resp, err := r.dispatcher.Dispatch(ctx, plan.Method, plan.URL, plan.Payload, plan.Encoding,
		http.WithRequestTimeout(plan.Timeout))
	if err != nil {
		logger.DebugContext(ctx, "call failed", "url", plan.URL, "error", err)
		return nil, fmt.Errorf("%s: %w", def.Name, err)
	}

	if p.Tester != nil {
		if terr := runTester(p.Tester, resp.Body); terr != nil {
			logger.ErrorContext(ctx, "tester failed", "status", resp.StatusCode, "error", terr)
			r.reporter.ReportTesterError(def.Name, terr)
		}
	}

	return resp, nil
}

func runTester(t Tester, v any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrTesterPanic, rec)
		}
	}()
	return t(v)
}
