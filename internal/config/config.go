// Package config loads daemon configuration from a TOML or YAML file,
// overlaid by DIAMOND_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"xdao.co/diamond/keys"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
)

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

type StateConfig struct {
	Driver string `toml:"driver" yaml:"driver" env:"DRIVER"`
	DSN    string `toml:"dsn" yaml:"dsn" env:"DSN"`
}

type OwnerConfig struct {
	// Seed is a hex-encoded 32-byte seed. KeyFile points at a file holding one.
	Seed    string `toml:"seed" yaml:"seed" env:"SEED"`
	KeyFile string `toml:"key_file" yaml:"key_file" env:"KEY_FILE"`
	Scheme  string `toml:"scheme" yaml:"scheme" env:"SCHEME"`
}

type TokenConfig struct {
	Name   string `toml:"name" yaml:"name" env:"NAME"`
	Symbol string `toml:"symbol" yaml:"symbol" env:"SYMBOL"`
	// Supply is a decimal amount of base units; empty selects the default.
	Supply string `toml:"supply" yaml:"supply" env:"SUPPLY"`
	// BurnRate, in basis points, initializes the burn module when set.
	BurnRate *uint64 `toml:"burn_rate" yaml:"burn_rate" env:"BURN_RATE"`
}

// IPFSConfig mirrors snapshots into a local Kubo repo.
type IPFSConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled" env:"ENABLED"`
	Bin     string `toml:"bin" yaml:"bin" env:"BIN"`
	Repo    string `toml:"repo" yaml:"repo" env:"REPO"`
	Pin     bool   `toml:"pin" yaml:"pin" env:"PIN"`
}

type Config struct {
	Listen       string      `toml:"listen" yaml:"listen" env:"LISTEN"`
	State        StateConfig `toml:"state" yaml:"state" envPrefix:"STATE_"`
	SnapshotDir  string      `toml:"snapshot_dir" yaml:"snapshot_dir" env:"SNAPSHOT_DIR"`
	IPFS         IPFSConfig  `toml:"ipfs" yaml:"ipfs" envPrefix:"IPFS_"`
	Owner        OwnerConfig `toml:"owner" yaml:"owner" envPrefix:"OWNER_"`
	Token        TokenConfig `toml:"token" yaml:"token" envPrefix:"TOKEN_"`
	LogLevel     string      `toml:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat    string      `toml:"log_format" yaml:"log_format" env:"LOG_FORMAT"`
	OTLPEndpoint string      `toml:"otlp_endpoint" yaml:"otlp_endpoint" env:"OTEL_ENDPOINT"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Listen: "127.0.0.1:7878",
		State:  StateConfig{Driver: "memory"},
		Owner:  OwnerConfig{Scheme: string(keys.SchemeEd25519)},
	}
}

// Load reads path (if non-empty), applies the environment and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := Decode(b, DetectFormat(path), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "DIAMOND_"}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DetectFormat picks the file format from the extension; TOML is the default.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

func Decode(b []byte, f Format, cfg *Config) error {
	switch f {
	case FormatYAML:
		return yaml.Unmarshal(b, cfg)
	case FormatTOML:
		_, err := toml.Decode(string(b), cfg)
		return err
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Listen) == "" {
		problems = append(problems, "listen is required")
	}
	if !contains(state.Names(state.UsageDaemon), c.State.Driver) {
		problems = append(problems, fmt.Sprintf("unknown state driver %q (have %s)", c.State.Driver, strings.Join(state.Names(state.UsageDaemon), ", ")))
	}
	if c.Owner.Seed != "" && c.Owner.KeyFile != "" {
		problems = append(problems, "owner.seed and owner.key_file are mutually exclusive")
	}
	if c.Owner.Seed == "" && c.Owner.KeyFile == "" {
		problems = append(problems, "one of owner.seed or owner.key_file is required")
	}
	if _, err := keys.ParseScheme(c.Owner.Scheme); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Token.Supply != "" {
		if _, err := uint256.FromDecimal(c.Token.Supply); err != nil {
			problems = append(problems, fmt.Sprintf("token.supply: %v", err))
		}
	}
	if c.Token.BurnRate != nil && *c.Token.BurnRate > model.MaxBurnRate {
		problems = append(problems, fmt.Sprintf("token.burn_rate %d exceeds %d", *c.Token.BurnRate, model.MaxBurnRate))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// OwnerSeed returns the owner's 32-byte seed.
func (c Config) OwnerSeed() ([]byte, error) {
	if c.Owner.KeyFile != "" {
		return keys.LoadSeedFile(c.Owner.KeyFile)
	}
	seed, err := keys.ParseSeedHex(c.Owner.Seed)
	if err != nil {
		return nil, fmt.Errorf("config: owner.seed: %w", err)
	}
	return seed, nil
}

// Supply returns the configured supply, or nil for the default.
func (c Config) Supply() *uint256.Int {
	if c.Token.Supply == "" {
		return nil
	}
	v, _ := uint256.FromDecimal(c.Token.Supply)
	return v
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
