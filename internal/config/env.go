package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ACM_"

type lookupFunc func(string) (string, bool)

// readDotEnv returns the variables of a dotenv file; a missing file yields none.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return values, nil
}

// overlay resolves a key from the process environment first, then the dotenv values.
func overlay(lookup lookupFunc, dotenv map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		if lookup != nil {
			if value, ok := lookup(key); ok {
				return value, true
			}
		}

		value, ok := dotenv[key]

		return value, ok
	}
}

// applyEnv overrides cfg fields from ACM_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	texts := map[string]*string{
		"MANAGER_LISTEN_ADDR":       &cfg.Manager.ListenAddress,
		"MANAGER_STATUS_ADDR":       &cfg.Manager.StatusAddress,
		"MANAGER_METRICS_ADDR":      &cfg.Manager.MetricsAddress,
		"MANAGER_FACILITY":          &cfg.Manager.Facility,
		"MANAGER_REPLY_ENCODING":    &cfg.Manager.ReplyEncoding,
		"REPORTER_MANAGER_ADDR":     &cfg.Reporter.ManagerAddress,
		"REPORTER_METRICS_ADDR":     &cfg.Reporter.MetricsAddress,
		"REPORTER_DEVICE_ID":        &cfg.Reporter.DeviceID,
		"REPORTER_DEVICE_LOCATION":  &cfg.Reporter.DeviceLocation,
		"REPORTER_SENDING_FACILITY": &cfg.Reporter.SendingFacility,
		"LOG_LEVEL":                 &cfg.Log.Level,
		"LOG_FILE":                  &cfg.Log.File,
		"LOG_FILE_LEVEL":            &cfg.Log.FileLevel,
	}

	for key, field := range texts {
		if value, ok := lookup(EnvPrefix + key); ok {
			*field = value
		}
	}

	durations := map[string]*time.Duration{
		"MANAGER_READ_TIMEOUT":        &cfg.Manager.ReadTimeout,
		"REPORTER_HEARTBEAT_INTERVAL": &cfg.Reporter.HeartbeatInterval,
		"REPORTER_READ_TIMEOUT":       &cfg.Reporter.ReadTimeout,
		"REPORTER_RECONNECT_DELAY":    &cfg.Reporter.ReconnectDelay,
		"REPORTER_DIAL_TIMEOUT":       &cfg.Reporter.DialTimeout,
	}

	for key, field := range durations {
		value, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}

		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}

		*field = d
	}

	if value, ok := lookup(EnvPrefix + "FRAMING_SYMMETRIC"); ok {
		symmetric, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%sFRAMING_SYMMETRIC: %w", EnvPrefix, err)
		}

		cfg.Framing.Symmetric = symmetric
	}

	return nil
}
