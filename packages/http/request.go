package http

import (
	"io"
	"time"
)

// Request is a fully resolved request handed to a Sender.
type Request struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     io.Reader
	Timeout  time.Duration
	Encoding string // response body encoding; "binary" keeps raw bytes
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body io.Reader) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetEncoding(encoding string) *Request {
	r.Encoding = encoding
	return r
}

// Payload is an assembled request body.
type Payload interface {
	// ContentType is the value for the Content-Type header.
	ContentType() string
	// Reader returns the encoded body. It is called at most once.
	Reader() (io.Reader, error)
	// Close releases any resources held by the payload, such as open files.
	Close() error
}
