// Package config defines the settings of the alert manager and the alert
// reporter and provides helpers to load, validate and save them in YAML
// format.
//
// Values from the YAML file can be overridden by ACM_* variables taken from
// the environment or from a .env file in the working directory.
package config
