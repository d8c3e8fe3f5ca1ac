// Package expect evaluates assertions against call responses.
//
// An assertion names a subject (status, duration, a header, or a gjson path
// into the body), an operator and an expected value:
//
//	status == 201
//	body.id exists
//	header Content-Type contains json
//	title==hello
//
// Check and Tester evaluate body-only assertions and can be plugged into a
// call as its tester.
package expect
