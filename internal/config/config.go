// Package config: умолчания -> stalmer.yaml -> STALMER_* (и .env) -> флаги.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "stalmer.yaml"
	EnvPrefix   = "STALMER_"
)

type Config struct {
	Source     string            `yaml:"source"`
	Out        string            `yaml:"out"`
	Generators []string          `yaml:"generators"`
	Options    map[string]string `yaml:"options"`
	RolesDir   string            `yaml:"rolesDir"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	Addr  string `yaml:"addr"`
	DBURL string `yaml:"dbUrl"`

	// Migrate: после generate применить схему (или MigrateCmd, если задана).
	Migrate        bool          `yaml:"migrate"`
	MigrateCmd     []string      `yaml:"migrateCmd"`
	MigrateTimeout time.Duration `yaml:"migrateTimeout"`
}

func def() Config {
	return Config{
		Source:         "app",
		Out:            "generated",
		Options:        map[string]string{},
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":8080",
		MigrateTimeout: 2 * time.Minute,
	}
}

func loadYAML(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if c.Options == nil {
		c.Options = map[string]string{}
	}
	return nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(EnvPrefix + k); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(EnvPrefix + k); ok {
		switch strings.TrimSpace(strings.ToLower(v)) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return fallback
}

// Load собирает всё, кроме флагов. Отсутствующий файл конфигурации не ошибка,
// если путь не задан явно.
func Load(path string) (Config, error) {
	cfg := def()

	// .env только дополняет окружение, существующие переменные не перетираются
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = getenv("CONFIG", DefaultPath)
	}
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		if err := loadYAML(path, &cfg); err != nil {
			return cfg, err
		}
	} else if explicit {
		return cfg, fmt.Errorf("config %s: not found", path)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Source = getenv("SOURCE", cfg.Source)
	cfg.Out = getenv("OUT", cfg.Out)
	cfg.RolesDir = getenv("ROLES_DIR", cfg.RolesDir)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)
	cfg.Addr = getenv("ADDR", cfg.Addr)
	cfg.DBURL = getenv("DB_URL", cfg.DBURL)
	cfg.Migrate = getenvBool("MIGRATE", cfg.Migrate)

	if v := getenv("GENERATORS", ""); v != "" {
		cfg.Generators = splitList(v)
	}
	if v := getenv("OPTIONS", ""); v != "" {
		for _, kv := range splitList(v) {
			if err := setOption(cfg.Options, kv); err != nil {
				return fmt.Errorf("%sOPTIONS: %w", EnvPrefix, err)
			}
		}
	}
	if v := getenv("MIGRATE_CMD", ""); v != "" {
		cfg.MigrateCmd = strings.Fields(v)
	}
	if v := getenv("MIGRATE_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sMIGRATE_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.MigrateTimeout = d
	}
	return nil
}

// Parse: Load + флаги подкоманды. Флаги fs, объявленные вызывающим, сохраняются.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	cfg, err := Load(configPath(args))
	if err != nil {
		return cfg, err
	}
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// BindFlags регистрирует флаги поверх текущих значений.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.String("config", DefaultPath, "Path to stalmer.yaml")
	fs.StringVar(&c.Source, "source", c.Source, "DSL file or directory")
	fs.StringVar(&c.Out, "out", c.Out, "Output root for generated trees")
	fs.Var((*listFlag)(&c.Generators), "generators", "Comma-separated generators (empty = all)")
	fs.Var(optionFlag(c.Options), "option", "Generator option key=value (repeatable)")
	fs.StringVar(&c.RolesDir, "roles-dir", c.RolesDir, "Directory with role catalogs (*.yaml)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug|info|warn|error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "text|json")
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.DBURL, "db-url", c.DBURL, "Database URL or sqlite path for migration")
	fs.BoolVar(&c.Migrate, "migrate", c.Migrate, "Apply the schema after generation")
	fs.Var((*fieldsFlag)(&c.MigrateCmd), "migrate-cmd", "External migration command")
	fs.DurationVar(&c.MigrateTimeout, "migrate-timeout", c.MigrateTimeout, "Migration timeout")
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Source) == "" {
		errs = append(errs, errors.New("source is required"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logLevel %q (allowed: debug|info|warn|error)", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logFormat %q (allowed: text|json)", c.LogFormat))
	}
	if c.MigrateTimeout < 0 {
		errs = append(errs, errors.New("migrateTimeout must not be negative"))
	}
	return errors.Join(errs...)
}

// configPath ищет -config/--config среди аргументов до разбора флагов.
func configPath(args []string) string {
	for i, a := range args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setOption(m map[string]string, kv string) error {
	k, v, ok := strings.Cut(kv, "=")
	k, v = strings.TrimSpace(k), strings.TrimSpace(v)
	if !ok || k == "" {
		return fmt.Errorf("option %q: want key=value", kv)
	}
	m[k] = v
	return nil
}

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }
func (l *listFlag) Set(s string) error {
	*l = splitList(s)
	return nil
}

type optionFlag map[string]string

func (o optionFlag) String() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + o[k]
	}
	return strings.Join(parts, ",")
}
func (o optionFlag) Set(s string) error { return setOption(o, s) }

type fieldsFlag []string

func (f *fieldsFlag) String() string { return strings.Join(*f, " ") }
func (f *fieldsFlag) Set(s string) error {
	*f = strings.Fields(s)
	return nil
}
