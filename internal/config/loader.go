package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/aquamind/internal/client"
	"github.com/rpattn/aquamind/internal/db"
	"github.com/rpattn/aquamind/pkg/filter"
	"github.com/rpattn/aquamind/pkg/pagination"
)

// EnvPrefix namespaces environment overrides, e.g. AQUAMIND_API_TOKEN.
const EnvPrefix = "AQUAMIND"

type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Filters    FiltersConfig    `mapstructure:"filters"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Export     ExportConfig     `mapstructure:"export"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Version    string        `mapstructure:"version"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	PageSize   int           `mapstructure:"page_size"`
}

// DatabaseConfig is only used when Enabled; otherwise snapshots are kept
// in memory.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Migrate  bool   `mapstructure:"migrate"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type FiltersConfig struct {
	DebounceDelay  time.Duration  `mapstructure:"debounce_delay"`
	MaxRecommended int            `mapstructure:"max_recommended"`
	Initial        map[string]any `mapstructure:"initial"`

	// InitialFilters is Initial after validation, keys in sorted order.
	InitialFilters *filter.Map[int64] `mapstructure:"-"`
}

type PaginationConfig struct {
	MaxPages int `mapstructure:"max_pages"`
}

type ExportConfig struct {
	Directory        string        `mapstructure:"directory"`
	DownloadTokenTTL time.Duration `mapstructure:"download_token_ttl"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	api := client.DefaultConfig()
	v.SetDefault("api.base_url", api.BaseURL)
	v.SetDefault("api.version", api.APIVersion)
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", api.Timeout)
	v.SetDefault("api.max_retries", api.MaxRetries)
	v.SetDefault("api.retry_delay", api.RetryDelay)
	v.SetDefault("api.page_size", 0)

	database := db.DefaultConfig()
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.migrate", true)
	v.SetDefault("database.host", database.Host)
	v.SetDefault("database.port", database.Port)
	v.SetDefault("database.user", database.User)
	v.SetDefault("database.password", database.Password)
	v.SetDefault("database.dbname", database.DBName)
	v.SetDefault("database.sslmode", database.SSLMode)
	v.SetDefault("database.max_conns", 0)

	v.SetDefault("filters.debounce_delay", filter.DefaultDebounceDelay)
	v.SetDefault("filters.max_recommended", filter.DefaultMaxRecommended)
	v.SetDefault("pagination.max_pages", pagination.DefaultMaxPages)

	v.SetDefault("export.directory", "")
	v.SetDefault("export.download_token_ttl", time.Duration(0))

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration from defaults, an optional config file and
// AQUAMIND_* environment variables, in increasing precedence. Flags bound
// to v beforehand win over all of them. An explicit configFile must exist;
// otherwise ./config.yaml is used when present.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	initial, err := initialFilters(cfg.Filters.Initial)
	if err != nil {
		return Config{}, err
	}
	cfg.Filters.InitialFilters = initial

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func initialFilters(raw map[string]any) (*filter.Map[int64], error) {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	m := filter.NewMap[int64]()
	for _, key := range keys {
		ids, err := filter.CoerceIDs(raw[key])
		if err != nil {
			return nil, fmt.Errorf("filters.initial.%s: %w", key, err)
		}
		m.Set(key, ids)
	}
	return m, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.MaxRetries < 0 {
		errs = append(errs, errors.New("api.max_retries must not be negative"))
	}
	if c.API.RetryDelay < 0 {
		errs = append(errs, errors.New("api.retry_delay must not be negative"))
	}
	if c.Filters.DebounceDelay < 0 {
		errs = append(errs, errors.New("filters.debounce_delay must not be negative"))
	}
	if c.Filters.MaxRecommended < 0 {
		errs = append(errs, errors.New("filters.max_recommended must not be negative"))
	}
	if c.Pagination.MaxPages < 0 {
		errs = append(errs, errors.New("pagination.max_pages must not be negative"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	if c.Database.Enabled && c.Database.Port <= 0 {
		errs = append(errs, errors.New("database.port must be positive"))
	}
	return errors.Join(errs...)
}

// Client converts the API section into client settings.
func (c Config) Client() client.Config {
	return client.Config{
		BaseURL:    c.API.BaseURL,
		APIVersion: c.API.Version,
		Token:      c.API.Token,
		Timeout:    c.API.Timeout,
		MaxRetries: c.API.MaxRetries,
		RetryDelay: c.API.RetryDelay,
		PageSize:   c.API.PageSize,
	}
}

// DB converts the database section into connection settings.
func (c Config) DB() db.Config {
	return db.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		DBName:   c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
		MaxConns: c.Database.MaxConns,
	}
}
