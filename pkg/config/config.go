// Package config loads mytokend configuration from a file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "MYTOKEN_"

// Store drivers
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config holds the complete daemon configuration.
type Config struct {
	Token TokenConfig `toml:"token" json:"token" yaml:"token"`
	Store StoreConfig `toml:"store" json:"store" yaml:"store"`
	HTTP  HTTPConfig  `toml:"http" json:"http" yaml:"http"`
	MCP   MCPConfig   `toml:"mcp" json:"mcp" yaml:"mcp"`
	Log   LogConfig   `toml:"log" json:"log" yaml:"log"`
}

// TokenConfig describes the token and its EIP-712 domain.
type TokenConfig struct {
	Name    string `toml:"name" json:"name" yaml:"name"`
	Version string `toml:"version" json:"version" yaml:"version"`
	// ChainID is a decimal string so ids above int64 survive every decoder.
	ChainID string `toml:"chain_id" json:"chain_id" yaml:"chain_id"`
	Address string `toml:"address" json:"address" yaml:"address"`
	Owner   string `toml:"owner" json:"owner" yaml:"owner"`
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Driver      string `toml:"driver" json:"driver" yaml:"driver"`
	RedisAddr   string `toml:"redis_addr" json:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `toml:"redis_prefix" json:"redis_prefix" yaml:"redis_prefix"`
	SQLitePath  string `toml:"sqlite_path" json:"sqlite_path" yaml:"sqlite_path"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" json:"addr" yaml:"addr"`

	// JWTSecret signs caller tokens. Required when the API is served.
	JWTSecret string `toml:"jwt_secret" json:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer string `toml:"jwt_issuer" json:"jwt_issuer" yaml:"jwt_issuer"`

	ReadTimeoutSec  int `toml:"read_timeout_sec" json:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int `toml:"write_timeout_sec" json:"write_timeout_sec" yaml:"write_timeout_sec"`
}

// MCPConfig mounts the MCP SSE endpoint on the HTTP server.
type MCPConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		Token: TokenConfig{
			Name:    "MyToken",
			Version: "1",
			ChainID: "1",
		},
		Store: StoreConfig{
			Driver:      DriverMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "mytoken",
			SQLitePath:  "mytoken.db",
		},
		HTTP: HTTPConfig{
			Enabled:         true,
			Addr:            ":8545",
			JWTIssuer:       "mytokend",
			ReadTimeoutSec:  10,
			WriteTimeoutSec: 30,
		},
		MCP: MCPConfig{
			Enabled: false,
			Path:    "/mcp",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (when non-empty), applies a .env file if present and
// then MYTOKEN_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadUnvalidated(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// LoadUnvalidated is Load without Validate, for offline commands that only
// need the token domain.
func LoadUnvalidated(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// A missing .env is not an error
	_ = godotenv.Load()

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile parses a config file based on its extension.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config extension %q (want .toml, .json, .yaml)", filepath.Ext(path))
	}
	return nil
}

// ApplyEnvOverrides overwrites fields from MYTOKEN_* variables.
func (c *Config) ApplyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
		return nil
	}

	// Token
	str("TOKEN_NAME", &c.Token.Name)
	str("CHAIN_ID", &c.Token.ChainID)
	str("TOKEN_ADDRESS", &c.Token.Address)
	str("TOKEN_OWNER", &c.Token.Owner)

	// Store
	str("STORE_DRIVER", &c.Store.Driver)
	str("REDIS_ADDR", &c.Store.RedisAddr)
	str("REDIS_PREFIX", &c.Store.RedisPrefix)
	str("SQLITE_PATH", &c.Store.SQLitePath)

	// HTTP
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("JWT_SECRET", &c.HTTP.JWTSecret)
	str("JWT_ISSUER", &c.HTTP.JWTIssuer)
	if err := boolean("HTTP_ENABLED", &c.HTTP.Enabled); err != nil {
		return err
	}

	// MCP
	if err := boolean("MCP_ENABLED", &c.MCP.Enabled); err != nil {
		return err
	}
	str("MCP_PATH", &c.MCP.Path)

	// Logging
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Token.Name == "" {
		errs = append(errs, errors.New("token.name is required"))
	}
	if c.Token.Version != "" && c.Token.Version != "1" {
		errs = append(errs, fmt.Errorf("token.version %q is not supported, only \"1\"", c.Token.Version))
	}
	if _, err := c.ChainID(); err != nil {
		errs = append(errs, err)
	}
	if !isAddress(c.Token.Address) {
		errs = append(errs, fmt.Errorf("token.address %q is not a 0x-prefixed address", c.Token.Address))
	}
	if c.Token.Owner != "" && !isAddress(c.Token.Owner) {
		errs = append(errs, fmt.Errorf("token.owner %q is not a 0x-prefixed address", c.Token.Owner))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis driver"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is unknown (memory, redis, sqlite)", c.Store.Driver))
	}

	if c.HTTP.Enabled {
		if c.HTTP.Addr == "" {
			errs = append(errs, errors.New("http.addr is required"))
		}
		if len(c.HTTP.JWTSecret) < 32 {
			errs = append(errs, errors.New("http.jwt_secret must be at least 32 bytes"))
		}
	}
	if c.MCP.Enabled {
		if !c.HTTP.Enabled {
			errs = append(errs, errors.New("mcp requires http.enabled"))
		}
		if !strings.HasPrefix(c.MCP.Path, "/") {
			errs = append(errs, fmt.Errorf("mcp.path %q must start with /", c.MCP.Path))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is unknown", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is unknown (text, json)", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ChainID parses token.chain_id.
func (c *Config) ChainID() (*big.Int, error) {
	id, ok := new(big.Int).SetString(c.Token.ChainID, 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("token.chain_id %q must be a positive integer", c.Token.ChainID)
	}
	return id, nil
}

// TokenAddress returns the verifying contract address.
func (c *Config) TokenAddress() common.Address {
	return common.HexToAddress(c.Token.Address)
}

// OwnerAddress returns the mint/burn authority, zero when unset.
func (c *Config) OwnerAddress() common.Address {
	if c.Token.Owner == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.Token.Owner)
}

// ReadTimeout returns the HTTP read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.HTTP.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.HTTP.WriteTimeoutSec) * time.Second
}

func isAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
