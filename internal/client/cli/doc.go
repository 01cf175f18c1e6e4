// Package cli provides the interactive benkyo command-line client.
//
// It wires configuration, the local state store, the API client and the
// session store into a REPL. Screens ("/", "/login", "/register",
// "/profile") are reached through the route guards: private screens send
// anonymous users to the login screen and back afterwards, public screens
// send logged-in users home.
//
// Commands: register, login, logout, whoami, profile, open <path>, exit.
//
// The REPL is started via App.Run(ctx), which bootstraps the session first
// and blocks until the user exits. See App and runREPL for details.
package cli
