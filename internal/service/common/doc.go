// Package common holds helpers shared by several services.
//
// It provides a lightweight client for the manager status service with
// timeouts and a helper that detects the local host and user.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
