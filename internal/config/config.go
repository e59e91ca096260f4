// Package config provides functionality for managing configuration options
// for the client and server binaries using command-line flags, environment
// variables, a .env file and an optional JSON config file.
//
// Precedence, lowest to highest: defaults, JSON file, environment, flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerOptions holds the configuration values for the reference server.
type ServerOptions struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"address"`

	// DatabaseDSN holds the postgres connection string.
	DatabaseDSN string `json:"database_dsn"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// LogLevel is a zap level name.
	LogLevel string `json:"log_level"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`
}

// ClientOptions holds the configuration values for the CLI client.
type ClientOptions struct {
	// ServerURL is the base URL of the feedback API.
	ServerURL string `json:"server_url"`

	// CAFile is an optional PEM bundle used to verify the server certificate.
	CAFile string `json:"ca_file"`

	// Store selects the session persistence backend: "file" or "sqlite".
	Store string `json:"store"`

	// SessionPath is where the session is persisted.
	SessionPath string `json:"session_path"`

	// Timeout bounds each HTTP request.
	Timeout Duration `json:"timeout"`

	// LogLevel is a zap level name.
	LogLevel string `json:"log_level"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`
}

// Duration is a time.Duration that decodes from JSON strings such as "10s"
// or from integer nanoseconds.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		d.Duration = parsed
	default:
		return errors.New("invalid duration")
	}
	return nil
}

// DefaultServerOptions returns the server defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Addr:     "localhost:8000",
		LogLevel: "info",
	}
}

// DefaultClientOptions returns the client defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		ServerURL:   "http://localhost:8000",
		Store:       "file",
		SessionPath: "session.json",
		Timeout:     Duration{10 * time.Second},
		LogLevel:    "warn",
	}
}

// ParseServer builds ServerOptions from args (without the program name) and
// the process environment.
func ParseServer(args []string) (*ServerOptions, error) {
	loadDotEnv()

	opts := DefaultServerOptions()
	flags := DefaultServerOptions()

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&flags.Addr, "a", flags.Addr, "run on ip:port server")
	fs.StringVar(&flags.DatabaseDSN, "d", flags.DatabaseDSN, "db address")
	fs.StringVar(&flags.TLSCert, "tls-cert", "", "path to server TLS certificate")
	fs.StringVar(&flags.TLSKey, "tls-key", "", "path to server TLS key")
	fs.StringVar(&flags.LogLevel, "l", flags.LogLevel, "log level")
	fs.StringVar(&flags.Config, "config", "", "path to config file")
	fs.StringVar(&flags.Config, "c", "", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	opts.Config = configPath(flags.Config)
	if err := readJSON(opts.Config, &opts); err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		opts.Addr = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		opts.DatabaseDSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		opts.LogLevel = v
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			opts.Addr = flags.Addr
		case "d":
			opts.DatabaseDSN = flags.DatabaseDSN
		case "tls-cert":
			opts.TLSCert = flags.TLSCert
		case "tls-key":
			opts.TLSKey = flags.TLSKey
		case "l":
			opts.LogLevel = flags.LogLevel
		}
	})

	if (opts.TLSCert == "") != (opts.TLSKey == "") {
		return nil, errors.New("tls-cert and tls-key must be set together")
	}
	return &opts, nil
}

// ParseClient builds ClientOptions from args (without the program name) and
// the process environment.
func ParseClient(args []string) (*ClientOptions, error) {
	loadDotEnv()

	opts := DefaultClientOptions()
	flags := DefaultClientOptions()

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&flags.ServerURL, "url", flags.ServerURL, "server base URL")
	fs.StringVar(&flags.CAFile, "ca", "", "path to CA cert used to verify the server")
	fs.StringVar(&flags.Store, "store", flags.Store, "session store: file | sqlite")
	fs.StringVar(&flags.SessionPath, "session", flags.SessionPath, "path to the persisted session")
	fs.DurationVar(&flags.Timeout.Duration, "timeout", flags.Timeout.Duration, "request timeout")
	fs.StringVar(&flags.LogLevel, "l", flags.LogLevel, "log level")
	fs.StringVar(&flags.Config, "config", "", "path to config file")
	fs.StringVar(&flags.Config, "c", "", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	opts.Config = configPath(flags.Config)
	if err := readJSON(opts.Config, &opts); err != nil {
		return nil, err
	}

	if v := os.Getenv("FEEDBACK_URL"); v != "" {
		opts.ServerURL = v
	}
	if v := os.Getenv("FEEDBACK_CA"); v != "" {
		opts.CAFile = v
	}
	if v := os.Getenv("FEEDBACK_SESSION"); v != "" {
		opts.SessionPath = v
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			opts.ServerURL = flags.ServerURL
		case "ca":
			opts.CAFile = flags.CAFile
		case "store":
			opts.Store = flags.Store
		case "session":
			opts.SessionPath = flags.SessionPath
		case "timeout":
			opts.Timeout = flags.Timeout
		case "l":
			opts.LogLevel = flags.LogLevel
		}
	})

	opts.ServerURL = strings.TrimRight(opts.ServerURL, "/")
	if opts.Store != "file" && opts.Store != "sqlite" {
		return nil, fmt.Errorf("unknown store %q", opts.Store)
	}
	return &opts, nil
}

func configPath(fromFlag string) string {
	if fromFlag != "" {
		return fromFlag
	}
	return os.Getenv("CONFIG")
}

// readJSON overlays dst with the JSON file at path. A missing file is not an
// error; a malformed one is.
func readJSON(path string, dst any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error while reading config file: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

// loadDotEnv loads .env from the working directory if present. Variables
// already set in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}
