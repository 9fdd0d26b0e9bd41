package config

import (
	"os"

	"codeberg.org/mutker/airco2ctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix     = "AIRCO2CTL"
	envConfigFile = "AIRCO2CTL_CONFIG"

	DefaultPollInterval = 100 // milliseconds between completed read cycles
	DefaultReadTimeout  = 10  // seconds per device read attempt
	DefaultLogLevel     = "info"
	defaultDatabase     = "/var/lib/airco2ctl/readings.db"
	defaultTopic        = "airco2ctl/readings"
)

type Config struct {
	PollInterval  int    `mapstructure:"poll_interval"`
	ReadTimeout   int    `mapstructure:"read_timeout"`
	Duration      int    `mapstructure:"duration"`
	LogLevel      string `mapstructure:"log_level"`
	Telemetry     bool   `mapstructure:"telemetry"`
	Database      string `mapstructure:"database"`
	ListenAddress string `mapstructure:"listen_address"`
	Broker        string `mapstructure:"broker"`
	Topic         string `mapstructure:"topic"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("read_timeout", DefaultReadTimeout)
	v.SetDefault("duration", 0)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", defaultDatabase)
	v.SetDefault("listen_address", "")
	v.SetDefault("broker", "")
	v.SetDefault("topic", defaultTopic)

	fs := pflag.NewFlagSet("airco2ctl", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Int("poll-interval", DefaultPollInterval, "Pause between read cycles in milliseconds")
	fs.Int("read-timeout", DefaultReadTimeout, "Device read timeout in seconds")
	fs.Int("duration", 0, "Stop after this many seconds (0 runs until signalled)")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.Bool("telemetry", false, "Record readings to the telemetry database")
	fs.String("database", defaultDatabase, "Path to the telemetry database")
	fs.String("listen-address", "", "Address for the metrics endpoint (empty disables it)")
	fs.String("broker", "", "MQTT broker URL (empty disables publishing)")
	fs.String("topic", defaultTopic, "MQTT topic for published readings")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for key, flag := range map[string]string{
		"poll_interval":  "poll-interval",
		"read_timeout":   "read-timeout",
		"duration":       "duration",
		"log_level":      "log-level",
		"telemetry":      "telemetry",
		"database":       "database",
		"listen_address": "listen-address",
		"broker":         "broker",
		"topic":          "topic",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path := os.Getenv(envConfigFile); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("airco2ctl")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.PollInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.PollInterval)
	}
	if c.ReadTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.ReadTimeout)
	}
	if c.Duration < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Duration)
	}
	if c.Telemetry && c.Database == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "telemetry requires a database path")
	}

	return nil
}
