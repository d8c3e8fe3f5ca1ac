// Package body assembles request payloads for endpoint calls.
//
// A call either sends its body mapping as JSON, or, when it carries file
// uploads, as multipart form data holding the files plus every body field
// coerced to a string. Upload sources are opened through the Files
// collaborator and stay open until the payload is closed.
package body
