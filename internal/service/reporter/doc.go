// Package reporter implements the alert reporter: a heartbeat sender loop and
// an acknowledgment receiver loop sharing one connection to the manager, an
// on-demand alarm and a line based console that drives them.
package reporter
