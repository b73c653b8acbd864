package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/acm-simulator/internal/hl7"
	"github.com/oshokin/acm-simulator/internal/logger"
	"github.com/oshokin/acm-simulator/internal/mllp"
)

// Config holds the settings of both simulator binaries.
type Config struct {
	// Manager configures the alert manager.
	Manager ManagerConfig `yaml:"manager"`
	// Reporter configures the alert reporter.
	Reporter ReporterConfig `yaml:"reporter"`
	// Framing configures the frame markers shared by both sides.
	Framing FramingConfig `yaml:"framing"`
	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// ManagerConfig holds alert manager settings.
type ManagerConfig struct {
	// ListenAddress is the TCP address the manager accepts reporters on.
	ListenAddress string `yaml:"listen_addr"`
	// StatusAddress is the gRPC status service address. Empty disables it.
	StatusAddress string `yaml:"status_addr,omitempty"`
	// MetricsAddress is the Prometheus endpoint address. Empty disables it.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// Facility is written to MSH-4 of alarm acknowledgments.
	Facility string `yaml:"facility"`
	// ReadTimeout bounds the wait for a frame on an accepted connection.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// ReplyEncoding is the encoding of alarm acknowledgments: er7 or json.
	ReplyEncoding string `yaml:"reply_encoding"`
}

// ReporterConfig holds alert reporter settings.
type ReporterConfig struct {
	// ManagerAddress is the TCP address of the alert manager.
	ManagerAddress string `yaml:"manager_addr"`
	// MetricsAddress is the Prometheus endpoint address. Empty disables it.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// DeviceID is the uuid URN of the simulated device.
	DeviceID string `yaml:"device_id"`
	// DeviceLocation is the assigned point of care of the device.
	DeviceLocation string `yaml:"device_location"`
	// SendingFacility is MSH-4 of reports. Empty means the local hostname.
	SendingFacility string `yaml:"sending_facility,omitempty"`
	// HeartbeatInterval is the period between heartbeats.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// ReadTimeout bounds each acknowledgment read.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// ReconnectDelay is the pause after a failed connection attempt.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	// DialTimeout bounds each connection attempt.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// FramingConfig holds frame marker settings.
type FramingConfig struct {
	// StartMarker opens every frame.
	StartMarker byte `yaml:"start_marker"`
	// EndMarker closes every frame.
	EndMarker byte `yaml:"end_marker"`
	// Symmetric wraps written payloads. When false writes are bare while reads
	// still expect markers.
	Symmetric bool `yaml:"symmetric"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zap level name.
	Level string `yaml:"level"`
	// File enables a rotating log file in addition to the console.
	File string `yaml:"file,omitempty"`
	// FileLevel is the level of the log file. Empty follows Level.
	FileLevel string `yaml:"file_level,omitempty"`
	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `yaml:"max_backups,omitempty"`
	// MaxAgeDays is the age after which rotated files are removed.
	MaxAgeDays int `yaml:"max_age_days,omitempty"`
	// Compress gzips rotated files.
	Compress bool `yaml:"compress,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for simulator settings.
	DefaultConfigFilename = "acm-settings.yaml"

	// DefaultEnvFilename is the dotenv file consulted for ACM_* overrides.
	DefaultEnvFilename = ".env"

	// DefaultManagerAddress is where the manager listens and the reporter connects.
	DefaultManagerAddress = "127.0.0.1:8888"

	// DefaultDeviceID is the uuid URN of the simulated device.
	DefaultDeviceID = "uuid:df041f5c-a3c9-11e9-8d8a-0050b612afeb"

	// DefaultDeviceLocation is the assigned point of care of the simulated device.
	DefaultDeviceLocation = "POC^Room^Bed^fac^^^building^floor"

	// DefaultFacility is the manager tag written to alarm acknowledgments.
	DefaultFacility = "MockAM"

	// DefaultHeartbeatInterval is the period between heartbeats.
	DefaultHeartbeatInterval = time.Second

	// DefaultReadTimeout bounds blocking reads on both sides.
	DefaultReadTimeout = 5 * time.Second

	// DefaultReconnectDelay is the reporter's pause after a failed dial.
	DefaultReconnectDelay = time.Second

	// DefaultDialTimeout bounds reporter dials.
	DefaultDialTimeout = 5 * time.Second

	// DefaultTimeout is the default duration for status RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAddressRequired is returned when a mandatory address is missing.
	errAddressRequired = errors.New("address must be provided")
	// errSameMarkers is returned when both frame markers are equal.
	errSameMarkers = errors.New("start and end markers must differ")
	// errUnknownEncoding is returned for an unsupported reply encoding.
	errUnknownEncoding = errors.New("unknown reply encoding")
	// errDeviceRequired is returned when the device identity is missing.
	errDeviceRequired = errors.New("device id and location must be provided")
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Manager: ManagerConfig{
			ListenAddress: DefaultManagerAddress,
			Facility:      DefaultFacility,
			ReadTimeout:   DefaultReadTimeout,
			ReplyEncoding: string(hl7.EncodingER7),
		},
		Reporter: ReporterConfig{
			ManagerAddress:    DefaultManagerAddress,
			DeviceID:          DefaultDeviceID,
			DeviceLocation:    DefaultDeviceLocation,
			HeartbeatInterval: DefaultHeartbeatInterval,
			ReadTimeout:       DefaultReadTimeout,
			ReconnectDelay:    DefaultReconnectDelay,
			DialTimeout:       DefaultDialTimeout,
		},
		Framing: FramingConfig{
			StartMarker: mllp.DefaultStartMarker,
			EndMarker:   mllp.DefaultEndMarker,
			Symmetric:   true,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load reads configuration from path, applies .env and ACM_* environment
// overrides and validates the result. An empty path means the default file.
// The default file is optional: when it does not exist the built-in defaults are used.
func Load(path string) (*Config, error) {
	return load(path, DefaultEnvFilename, os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigFilename
	}

	optional := path == DefaultConfigFilename

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err := yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	dotenv, err := readDotEnv(envFile)
	if err != nil {
		return nil, err
	}

	if err := applyEnv(cfg, overlay(lookup, dotenv)); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills zero durations with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := validateAddress("manager listen", cfg.Manager.ListenAddress, true); err != nil {
		return err
	}

	if err := validateAddress("manager status", cfg.Manager.StatusAddress, false); err != nil {
		return err
	}

	if err := validateAddress("manager metrics", cfg.Manager.MetricsAddress, false); err != nil {
		return err
	}

	if err := validateAddress("reporter manager", cfg.Reporter.ManagerAddress, true); err != nil {
		return err
	}

	if err := validateAddress("reporter metrics", cfg.Reporter.MetricsAddress, false); err != nil {
		return err
	}

	if cfg.Manager.Facility == "" {
		cfg.Manager.Facility = DefaultFacility
	}

	if cfg.Manager.ReplyEncoding == "" {
		cfg.Manager.ReplyEncoding = string(hl7.EncodingER7)
	}

	if !hl7.Encoding(cfg.Manager.ReplyEncoding).Valid() {
		return fmt.Errorf("%w: %q", errUnknownEncoding, cfg.Manager.ReplyEncoding)
	}

	if cfg.Reporter.DeviceID == "" || cfg.Reporter.DeviceLocation == "" {
		return errDeviceRequired
	}

	if cfg.Framing.StartMarker == cfg.Framing.EndMarker {
		return errSameMarkers
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("%w: %q", logger.ErrUnknownLevel, cfg.Log.Level)
	}

	if cfg.Log.FileLevel != "" {
		if _, ok := logger.ParseLogLevel(cfg.Log.FileLevel); !ok {
			return fmt.Errorf("file: %w: %q", logger.ErrUnknownLevel, cfg.Log.FileLevel)
		}
	}

	defaultDuration(&cfg.Manager.ReadTimeout, DefaultReadTimeout)
	defaultDuration(&cfg.Reporter.HeartbeatInterval, DefaultHeartbeatInterval)
	defaultDuration(&cfg.Reporter.ReadTimeout, DefaultReadTimeout)
	defaultDuration(&cfg.Reporter.ReconnectDelay, DefaultReconnectDelay)
	defaultDuration(&cfg.Reporter.DialTimeout, DefaultDialTimeout)

	return nil
}

func validateAddress(name, address string, required bool) error {
	if address == "" {
		if required {
			return fmt.Errorf("%s: %w", name, errAddressRequired)
		}

		return nil
	}

	if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
		return fmt.Errorf("invalid %s address: %w", name, err)
	}

	return nil
}

func defaultDuration(d *time.Duration, fallback time.Duration) {
	if *d <= 0 {
		*d = fallback
	}
}

// Codec returns the frame codec described by the framing settings.
func (f FramingConfig) Codec() *mllp.Codec {
	opts := []mllp.Option{mllp.WithMarkers(f.StartMarker, f.EndMarker)}
	if !f.Symmetric {
		opts = append(opts, mllp.WithBarePayloads())
	}

	return mllp.NewCodec(opts...)
}

// FileSink returns the rotating file settings of the logger.
func (l LogConfig) FileSink() logger.FileSink {
	return logger.FileSink{
		Path:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
		Level:      l.FileLevel,
	}
}
