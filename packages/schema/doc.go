// Package schema compiles endpoint definitions into callable actions.
//
// A Registry is built once from an ordered list of Endpoint definitions and
// shared Options. Building validates every name (word characters only) and
// rejects duplicates. Each bound Action resolves its path and query string,
// assembles a JSON or multipart body, dispatches the request and optionally
// runs a Tester against the parsed response body.
//
// Definitions are copied on registration and on every call, so a Registry is
// safe for concurrent use.
package schema
