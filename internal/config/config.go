// Package config loads server settings from defaults, a .env file, the
// environment and command-line flags, later sources winning.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/spf13/pflag"

	"github.com/Vasu1712/scenyx-stage/internal/backend"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreValkey = "valkey"
)

// Config holds every server setting.
type Config struct {
	ListenAddr      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CORSOrigin      string

	Store          string
	ValkeyAddr     string
	ValkeyPassword string
	ValkeyDB       int
	ValkeyPrefix   string

	// ChannelMap is a YAML slot table; empty uses the built-in map.
	ChannelMap string

	BackendURL   string
	BackendQueue int
	LiveMode     bool

	// LogConfig is a loggo config string such as "<root>=INFO;stage.backend=DEBUG".
	LogConfig string
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		RequestTimeout:  10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		CORSOrigin:      "http://127.0.0.1:5173",
		Store:           StoreMemory,
		ValkeyAddr:      "127.0.0.1:6379",
		ValkeyPrefix:    "stage",
		BackendQueue:    backend.DefaultQueueSize,
		LogConfig:       "<root>=INFO",
	}
}

// Load reads the env file (STAGE_ENV_FILE, default .env, missing is fine),
// then STAGE_* variables, then args.
func Load(args []string) (Config, error) {
	envFile := os.Getenv("STAGE_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Annotatef(err, "loading %s", envFile)
	}

	cfg := Default()
	if err := cfg.fromEnv(os.LookupEnv); err != nil {
		return Config{}, errors.Trace(err)
	}

	fs := pflag.NewFlagSet("stage", pflag.ContinueOnError)
	cfg.addFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Trace(err)
	}
	if fs.NArg() > 0 {
		return Config{}, errors.NotValidf("argument %q", fs.Arg(0))
	}
	return cfg, errors.Trace(cfg.Validate())
}

func (c *Config) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "HTTP listen address")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "per-request timeout")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "graceful shutdown limit")
	fs.StringVar(&c.CORSOrigin, "cors-origin", c.CORSOrigin, "allowed browser origin, * for any")
	fs.StringVar(&c.Store, "store", c.Store, "document store: memory or valkey")
	fs.StringVar(&c.ValkeyAddr, "valkey-addr", c.ValkeyAddr, "valkey server address")
	fs.StringVar(&c.ValkeyPassword, "valkey-password", c.ValkeyPassword, "valkey password")
	fs.IntVar(&c.ValkeyDB, "valkey-db", c.ValkeyDB, "valkey database number")
	fs.StringVar(&c.ValkeyPrefix, "valkey-prefix", c.ValkeyPrefix, "prefix for valkey keys")
	fs.StringVar(&c.ChannelMap, "channel-map", c.ChannelMap, "YAML channel map file")
	fs.StringVar(&c.BackendURL, "backend-url", c.BackendURL, "lighting backend websocket URL, empty to disable")
	fs.IntVar(&c.BackendQueue, "backend-queue", c.BackendQueue, "events buffered for the backend")
	fs.BoolVar(&c.LiveMode, "live-mode", c.LiveMode, "push every live fixture write to the backend")
	fs.StringVar(&c.LogConfig, "log-config", c.LogConfig, "loggo logging config")
}

func (c *Config) fromEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	str("STAGE_LISTEN", &c.ListenAddr)
	str("STAGE_CORS_ORIGIN", &c.CORSOrigin)
	str("STAGE_STORE", &c.Store)
	str("STAGE_VALKEY_ADDR", &c.ValkeyAddr)
	str("STAGE_VALKEY_PASSWORD", &c.ValkeyPassword)
	str("STAGE_VALKEY_PREFIX", &c.ValkeyPrefix)
	str("STAGE_CHANNEL_MAP", &c.ChannelMap)
	str("STAGE_BACKEND_URL", &c.BackendURL)
	str("STAGE_LOG_CONFIG", &c.LogConfig)

	for key, dst := range map[string]*time.Duration{
		"STAGE_REQUEST_TIMEOUT":  &c.RequestTimeout,
		"STAGE_SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
	} {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.NotValidf("%s %q", key, v)
			}
			*dst = d
		}
	}
	for key, dst := range map[string]*int{
		"STAGE_VALKEY_DB":     &c.ValkeyDB,
		"STAGE_BACKEND_QUEUE": &c.BackendQueue,
	} {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.NotValidf("%s %q", key, v)
			}
			*dst = n
		}
	}
	if v, ok := lookup("STAGE_LIVE_MODE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NotValidf("STAGE_LIVE_MODE %q", v)
		}
		c.LiveMode = b
	}
	return nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.NotValidf("empty listen address")
	}
	switch c.Store {
	case StoreMemory, StoreValkey:
	default:
		return errors.NotValidf("store %q", c.Store)
	}
	if c.BackendQueue <= 0 {
		return errors.NotValidf("backend queue size %d", c.BackendQueue)
	}
	if c.RequestTimeout <= 0 {
		return errors.NotValidf("request timeout %v", c.RequestTimeout)
	}
	return nil
}
