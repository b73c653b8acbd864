// Package version exposes build metadata of the simulator binaries.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags.
// Short and Full render them for CLI output, UserAgent for the status client.
package version
