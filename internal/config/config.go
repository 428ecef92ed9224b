// Package config resolves runtime settings from defaults, an optional CUE
// file, a .env file, PUNCHCARD_* environment variables and CLI flags, in
// increasing order of precedence. Flags are applied by the CLI.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"

	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/pda"
)

//go:embed schema.cue
var schemaSrc []byte

// DefaultFile is looked for in the working directory when no --config is
// given.
const DefaultFile = "punchcard.cue"

// MaxShards bounds the shard count. Records map to shards by the first
// address byte, so shards past 256 would never receive work.
const MaxShards = 256

// Environment variable names.
const (
	EnvDB        = "PUNCHCARD_DB"
	EnvEndpoint  = "PUNCHCARD_ENDPOINT"
	EnvKeypair   = "PUNCHCARD_KEYPAIR"
	EnvProgramID = "PUNCHCARD_PROGRAM_ID"
	EnvListen    = "PUNCHCARD_LISTEN"
	EnvTimeout   = "PUNCHCARD_TIMEOUT"
	EnvLogLevel  = "PUNCHCARD_LOG_LEVEL"
	EnvShards    = "PUNCHCARD_SHARDS"
)

// Config is the resolved configuration.
type Config struct {
	DB        string        `json:"db"`
	Endpoint  string        `json:"endpoint,omitempty"`
	Keypair   string        `json:"keypair"`
	ProgramID string        `json:"program_id"`
	Listen    string        `json:"listen"`
	Timeout   time.Duration `json:"timeout"`
	LogLevel  string        `json:"log_level"`
	Shards    int           `json:"shards"`
}

// fileConfig mirrors #Config; nil means "not set in the file".
type fileConfig struct {
	DB        *string `json:"db"`
	Endpoint  *string `json:"endpoint"`
	Keypair   *string `json:"keypair"`
	ProgramID *string `json:"program_id"`
	Listen    *string `json:"listen"`
	Timeout   *string `json:"timeout"`
	LogLevel  *string `json:"log_level"`
	Shards    *int    `json:"shards"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DB:        "punchcard.db",
		Keypair:   defaultKeypairPath(),
		ProgramID: pda.DefaultProgramID.String(),
		Listen:    "127.0.0.1:8787",
		Timeout:   15 * time.Second,
		LogLevel:  "info",
		Shards:    8,
	}
}

func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "solana", "id.json")
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

// Load resolves defaults, then the CUE file at path, then the environment
// read through getenv (nil means os.Getenv).
//
// An empty path loads DefaultFile if it exists and skips the file step
// otherwise. A path that was named explicitly must exist.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil || explicit {
		fc, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := cfg.applyFile(fc); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile compiles the CUE file at path and validates it against the
// embedded #Config schema.
func loadFile(path string) (fileConfig, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fileConfig{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	data := ctx.CompileBytes(src, cue.Filename(path))
	if err := data.Err(); err != nil {
		return fileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	v := def.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fileConfig{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	var fc fileConfig
	if err := v.Decode(&fc); err != nil {
		return fileConfig{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return fc, nil
}

func (c *Config) applyFile(fc fileConfig) error {
	setString(&c.DB, fc.DB)
	setString(&c.Endpoint, fc.Endpoint)
	setString(&c.Keypair, fc.Keypair)
	setString(&c.ProgramID, fc.ProgramID)
	setString(&c.Listen, fc.Listen)
	setString(&c.LogLevel, fc.LogLevel)
	if fc.Shards != nil {
		c.Shards = *fc.Shards
	}
	if fc.Timeout != nil {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	return c.Validate()
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// ApplyEnv overrides fields from PUNCHCARD_* variables. Empty variables are
// ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvDB); v != "" {
		c.DB = v
	}
	if v := getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := getenv(EnvKeypair); v != "" {
		c.Keypair = v
	}
	if v := getenv(EnvProgramID); v != "" {
		c.ProgramID = v
	}
	if v := getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := getenv(EnvShards); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvShards, err)
		}
		c.Shards = n
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Validate checks values that the file schema cannot see, such as those
// set from the environment or flags.
func (c Config) Validate() error {
	var errs []error
	if _, err := ir.ParseAddress(c.ProgramID); err != nil {
		errs = append(errs, fmt.Errorf("program_id: %w", err))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative: %s", c.Timeout))
	}
	if c.Shards < 1 || c.Shards > MaxShards {
		errs = append(errs, fmt.Errorf("shards must be between 1 and %d: %d", MaxShards, c.Shards))
	}
	return errors.Join(errs...)
}

// LoadDotenv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ProgramAddress parses ProgramID.
func (c Config) ProgramAddress() (ir.Address, error) {
	return ir.ParseAddress(c.ProgramID)
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
