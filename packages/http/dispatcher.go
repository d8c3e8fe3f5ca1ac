package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ResultReporter receives every response that completed without a transport
// error. It is used for showing results and has no effect on the call.
type ResultReporter interface {
	ReportResult(resp *Response)
}

type dispatchFunc func(ctx context.Context, url string, payload Payload, encoding string, opts ...RequestOption) (*Response, error)

// RequestOption adjusts a request before it is sent.
type RequestOption func(*Request)

// WithRequestTimeout bounds a single request. Zero leaves the client
// timeout in charge.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		if d > 0 {
			r.SetTimeout(d)
		}
	}
}

// Dispatcher issues calls against a Sender through a fixed per-method table.
type Dispatcher struct {
	sender     Sender
	reporter   ResultReporter
	showResult bool
	logger     *slog.Logger
	table      map[Method]dispatchFunc
}

type DispatcherOption func(*Dispatcher)

func NewDispatcher(sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.table = map[Method]dispatchFunc{
		MethodGet: func(ctx context.Context, url string, _ Payload, _ string, opts ...RequestOption) (*Response, error) {
			return d.Get(ctx, url, opts...)
		},
		MethodPost: d.Post,
		MethodPut: func(ctx context.Context, url string, payload Payload, _ string, opts ...RequestOption) (*Response, error) {
			return d.Put(ctx, url, payload, opts...)
		},
		MethodPatch: func(ctx context.Context, url string, payload Payload, _ string, opts ...RequestOption) (*Response, error) {
			return d.Patch(ctx, url, payload, opts...)
		},
		MethodDelete: func(ctx context.Context, url string, payload Payload, _ string, opts ...RequestOption) (*Response, error) {
			return d.Delete(ctx, url, payload, opts...)
		},
	}
	return d
}

// WithShowResult turns result reporting on or off.
func WithShowResult(show bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.showResult = show
	}
}

// WithReporter sets where results are reported when reporting is on.
func WithReporter(r ResultReporter) DispatcherOption {
	return func(d *Dispatcher) {
		d.reporter = r
	}
}

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatch routes the call to the handler for method. The encoding is only
// honored for POST.
func (d *Dispatcher) Dispatch(ctx context.Context, method Method, url string, payload Payload, encoding string, opts ...RequestOption) (*Response, error) {
	fn, ok := d.table[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	return fn(ctx, url, payload, encoding, opts...)
}

func (d *Dispatcher) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return d.send(ctx, MethodGet, url, nil, "", opts)
}

func (d *Dispatcher) Post(ctx context.Context, url string, payload Payload, encoding string, opts ...RequestOption) (*Response, error) {
	return d.send(ctx, MethodPost, url, payload, encoding, opts)
}

func (d *Dispatcher) Put(ctx context.Context, url string, payload Payload, opts ...RequestOption) (*Response, error) {
	return d.send(ctx, MethodPut, url, payload, "", opts)
}

func (d *Dispatcher) Patch(ctx context.Context, url string, payload Payload, opts ...RequestOption) (*Response, error) {
	return d.send(ctx, MethodPatch, url, payload, "", opts)
}

func (d *Dispatcher) Delete(ctx context.Context, url string, payload Payload, opts ...RequestOption) (*Response, error) {
	return d.send(ctx, MethodDelete, url, payload, "", opts)
}

func (d *Dispatcher) send(ctx context.Context, method Method, url string, payload Payload, encoding string, opts []RequestOption) (*Response, error) {
	req := NewRequest(method.String(), url).
		SetHeader("Accept", "application/json").
		SetEncoding(encoding)
	for _, opt := range opts {
		opt(req)
	}

	if payload != nil {
		body, err := payload.Reader()
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		req.SetBody(body)
		if ct := payload.ContentType(); ct != "" {
			req.SetHeader("Content-Type", ct)
		}
	}

	d.logger.DebugContext(ctx, "dispatching request", "method", req.Method, "url", url)

	resp, err := d.sender.Send(ctx, req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: url, Cause: err}
	}

	d.logger.DebugContext(ctx, "request completed",
		"method", req.Method,
		"url", url,
		"status", resp.StatusCode,
		"elapsed_ms", resp.DurationMs(),
	)

	if d.showResult && d.reporter != nil {
		d.reporter.ReportResult(resp)
	}

	return resp, nil
}
