// Package labelbase is the HTTP client for the Labelbase annotation server.
//
// Callers name a logical method ("tasks", "project", "invokeAction", ...)
// instead of a URL; the client maps it to a verb and path, substituting a
// ":id" segment from the request parameters where the endpoint has one.
//
// Every call returns a Result rather than a (value, error) pair. Transport
// failures, error-status responses, and unknown methods all travel inside the
// Result: Err carries the failure, Status the HTTP code, and Response the raw
// error payload when the server sent one. A 404 is a first-class outcome
// (Result.NotFound) because several endpoints legitimately have nothing to
// return and callers treat that as absence, not as an error.
//
// The package also declares the wire types the rest of the application
// decodes into: Project, Tab, Column, Action, and the paginated list
// responses.
package labelbase
