// Package http dispatches resolved endpoint calls over HTTP.
//
// It provides:
//   - Method, the closed set of verbs an endpoint may use
//   - Dispatcher, a per-method dispatch table over an abstract Sender
//   - Client, the default Sender built on the standard library transport
//     with configurable timeouts, redirects, TLS validation and proxying
//   - Response, a normalized result with the body parsed per content
//   - TransportError for network-level failures (non-2xx is not an error)
package http
