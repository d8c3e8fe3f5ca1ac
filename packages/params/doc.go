// Package params resolves endpoint path templates and query strings.
//
// It provides:
//   - Set, an ordered list of name/value pairs or a name-to-value mapping
//   - Substitution of :name placeholders from static and call-time path parameters
//   - Query string serialization where call-time values replace static ones
//   - Detection of placeholders left unresolved after substitution
package params
