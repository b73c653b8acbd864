// Package manager implements the alert manager: it accepts reporter
// connections, reads one frame per connection, classifies the message and
// writes the matching acknowledgment.
//
// Connections are handled one at a time on the accept goroutine. Every
// outcome is recorded in a journal that backs the gRPC status service and the
// Prometheus collectors.
package manager
