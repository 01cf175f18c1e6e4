// Package client contains the client-side building blocks that talk to the
// benkyo API and keep local state.
//
// # Overview
//
// The package provides:
//  1. The Client interface describing the API calls the session layer
//     needs: Register, Login, Logout, User and UpdateProfile.
//  2. HTTPClient, its implementation over net/http. It holds the bearer
//     token, sends methods other than GET and POST as POST with the
//     X-HTTP-Method-Override header, and reads the result envelope from
//     the body. The body's status wins over the HTTP status.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Results with a non-200 status are returned as data, not errors. Errors
// are reserved for transport failures (ErrUnavailable), unreadable answers
// (ErrUnexpectedResponse) and a rejected token on User (ErrUnauthorized).
// Match them with errors.Is.
//
// HTTPClient is safe for concurrent use. Every call honors the context
// and is additionally bounded by the configured request timeout.
package client
