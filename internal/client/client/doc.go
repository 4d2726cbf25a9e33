// Package client is the HTTP transport of the GoTogether CLI.
//
// HTTPClient speaks the JSON envelope of the auth API and turns every
// failure into one of a few typed errors:
//
//   - ErrUnavailable: the request never got a response.
//   - *APIError: the server answered with {"message", "code"}. A 401 also
//     matches ErrUnauthenticated.
//   - ErrUnexpectedResponse: the body did not match the envelope.
//
// It holds no session state; tokens are passed in by the session manager.
// InitDatabase opens and migrates the local SQLite file used to persist
// that session between runs.
package client
