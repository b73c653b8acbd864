// Package metrics holds the Prometheus collectors of the alert manager and
// the alert reporter and serves them over HTTP.
//
// Each collector set owns its registry so several instances can live in one
// process, which the tests rely on. Methods are safe to call on a nil
// receiver; a nil collector set means metrics are disabled.
package metrics
