// Package cli implements the interactive wallet client: a small REPL over
// the session, record, and sync services. It owns only presentation; all
// behavior lives in the services layer.
package cli
