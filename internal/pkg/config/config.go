package config

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/sethvargo/go-envconfig"
)

// Supported values of STORE_DRIVER.
const (
	StoreSheet  = "sheet"
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	Timezone string `env:"TIMEZONE,  default=Local"`
	// StaticDir, when set, is served at / for the scanner front end.
	StaticDir   string `env:"STATIC_DIR"`
	ScanWorkers int    `env:"SCAN_WORKERS, default=8"`

	Auth  AuthConfig
	Store StoreConfig
	Mongo MongoConfig
	SQL   SQLConfig
	Redis RedisConfig
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=12h"`
	// SuperadminUsers is a comma separated allow-list, merged with the two
	// single-address variables below.
	SuperadminUsers   []string `env:"SUPERADMIN_USERS"`
	Superadmin1Email  string   `env:"SUPERADMIN_1_EMAIL"`
	Superadmin2Email  string   `env:"SUPERADMIN_2_EMAIL"`
	BootstrapPassword string   `env:"SUPERADMIN_BOOTSTRAP_PASSWORD"`
	HashPasswords     bool     `env:"HASH_PASSWORDS, default=true"`
}

type StoreConfig struct {
	Driver    string `env:"STORE_DRIVER, default=sheet"`
	SheetPath string `env:"SHEET_PATH,   default=./inventario.xlsx"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=inventory"`
}

type SQLConfig struct {
	DSN string `env:"SQL_DSN, default=./inventory.db?_journal_mode=WAL&_busy_timeout=5000"`
}

type RedisConfig struct {
	Enabled bool          `env:"REDIS_ENABLED,  default=false"`
	Addr    string        `env:"REDIS_ADDR,     default=localhost:6379"`
	DB      int           `env:"REDIS_DB,       default=0"`
	LockTTL time.Duration `env:"REDIS_LOCK_TTL, default=10s"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration through l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case StoreSheet, StoreMongo, StoreSQLite, StoreMySQL:
	default:
		return fmt.Errorf("STORE_DRIVER: unsupported value %q", c.Store.Driver)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

// Superadmins returns the merged, de-duplicated superadmin allow-list.
func (c *Config) Superadmins() []string {
	seen := make(map[string]struct{})
	var out []string
	candidates := append([]string{c.Auth.Superadmin1Email, c.Auth.Superadmin2Email}, c.Auth.SuperadminUsers...)
	for _, u := range candidates {
		u = strings.TrimSpace(u)
		key := strings.ToLower(u)
		if u == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Location resolves TIMEZONE; "Local" and "" map to the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// IsDevelopment reports whether ENV selects the development profile.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
