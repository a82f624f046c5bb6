// Package translog writes the per-run transcript log: one file per session,
// append-only, every line prefixed with a timestamp.
package translog
