// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads ecostat settings from an optional YAML file, an
// optional .env file and ECOSTAT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ecoplant/ecostat/pkg/params"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "ECOSTAT_"

// Config is the complete ecostat configuration
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Device   DeviceConfig   `yaml:"device"`
	Log      LogConfig      `yaml:"log"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
}

// GatewayConfig points at the command-execution REST endpoint
type GatewayConfig struct {
	URL          string        `yaml:"url"`
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// RealtimeConfig selects the frame source
type RealtimeConfig struct {
	WSURL      string `yaml:"ws_url"`
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`
}

// DeviceConfig describes the default device
type DeviceConfig struct {
	ID         string `yaml:"id"`
	Generation string `yaml:"generation"`
	// MvZero overrides the calibration found in the device description
	MvZero *int `yaml:"mv_zero"`
}

// LogConfig controls logrus output
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MonitorConfig controls the Prometheus endpoint. An empty Addr disables it.
type MonitorConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig controls the Redis result sink. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// MQTTConfig controls the MQTT result sink. An empty Broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// APIConfig controls the HTTP API served by "ecostat serve"
type APIConfig struct {
	Addr        string `yaml:"addr"`
	BearerToken string `yaml:"bearer_token"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Timeout:      10 * time.Second,
			PollInterval: 2 * time.Second,
			MaxAttempts:  15,
		},
		Realtime: RealtimeConfig{
			BaudRate: 115200,
		},
		Device: DeviceConfig{
			Generation: "syrus3",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Redis: RedisConfig{
			Channel: "ecostat:results",
		},
		MQTT: MQTTConfig{
			ClientID:    "ecostat",
			TopicPrefix: "ecoplant",
		},
		API: APIConfig{
			Addr: ":8080",
		},
	}
}

// Load builds the configuration. A non-empty path must name a readable YAML
// file. A .env file in the working directory is loaded if present; variables
// already set in the environment take precedence over it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	_ = godotenv.Load() // ignore missing file

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	stringVars := map[string]*string{
		"GATEWAY_URL":    &c.Gateway.URL,
		"GATEWAY_TOKEN":  &c.Gateway.Token,
		"WS_URL":         &c.Realtime.WSURL,
		"SERIAL_PORT":    &c.Realtime.SerialPort,
		"DEVICE_ID":      &c.Device.ID,
		"GENERATION":     &c.Device.Generation,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
		"METRICS_ADDR":   &c.Monitor.Addr,
		"REDIS_ADDR":     &c.Redis.Addr,
		"REDIS_PASSWORD": &c.Redis.Password,
		"REDIS_CHANNEL":  &c.Redis.Channel,
		"MQTT_BROKER":    &c.MQTT.Broker,
		"MQTT_USERNAME":  &c.MQTT.Username,
		"MQTT_PASSWORD":  &c.MQTT.Password,
		"API_ADDR":       &c.API.Addr,
		"API_TOKEN":      &c.API.BearerToken,
	}
	for name, dst := range stringVars {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"BAUD_RATE":    &c.Realtime.BaudRate,
		"MAX_ATTEMPTS": &c.Gateway.MaxAttempts,
		"REDIS_DB":     &c.Redis.DB,
	}
	for name, dst := range intVars {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid %s%s: %s", EnvPrefix, name, v)
			}
			*dst = n
		}
	}

	if v := os.Getenv(EnvPrefix + "MV_ZERO"); v != "" {
		mv, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sMV_ZERO: %s", EnvPrefix, v)
		}
		c.Device.MvZero = &mv
	}

	if v := os.Getenv(EnvPrefix + "POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %sPOLL_INTERVAL: %s", EnvPrefix, v)
		}
		c.Gateway.PollInterval = d
	}

	return nil
}

// Validate checks values that would otherwise fail deep inside a command
func (c *Config) Validate() error {
	if _, err := params.ParseGeneration(c.Device.Generation); err != nil {
		return fmt.Errorf("device.generation: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unsupported format %q", c.Log.Format)
	}
	if c.Gateway.MaxAttempts <= 0 {
		return errors.New("gateway.max_attempts must be positive")
	}
	if c.Gateway.PollInterval <= 0 {
		return errors.New("gateway.poll_interval must be positive")
	}
	return nil
}

// Generation returns the parsed device generation
func (c *Config) Generation() params.Generation {
	gen, err := params.ParseGeneration(c.Device.Generation)
	if err != nil {
		return params.Syrus3
	}
	return gen
}

// SetupLogging applies the log level and format to the standard logrus logger
func (c *Config) SetupLogging() {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
