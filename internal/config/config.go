package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/law-makers/lotscout/internal/utils/headers"
	"github.com/law-makers/lotscout/pkg/models"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "LOTSCOUT_"

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	JSONLog  bool   `yaml:"json_log"`

	// Rendering
	Renderer          models.RendererKind `yaml:"renderer"`
	NavigationTimeout time.Duration       `yaml:"navigation_timeout"`
	Settle            time.Duration       `yaml:"settle"`
	UserAgent         string              `yaml:"user_agent"`
	Headers           map[string]string   `yaml:"headers"`
	Proxies           []string            `yaml:"proxies"`
	ProxyCooldown     time.Duration       `yaml:"proxy_cooldown"`
	Headless          bool                `yaml:"headless"`
	ChromePath        string              `yaml:"chrome_path"`

	// Rate Limiting
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// Search
	Limit         int                 `yaml:"limit"`
	PerQueryLimit int                 `yaml:"per_query_limit"`
	Queries       []models.Query      `yaml:"queries"`
	DetailPolicy  models.DetailPolicy `yaml:"detail_policy"`

	// Eligibility
	Make           string   `yaml:"make"`
	Model          string   `yaml:"model"`
	YearMin        int      `yaml:"year_min"`
	YearMax        int      `yaml:"year_max"`
	MileageCeiling int      `yaml:"mileage_ceiling"`
	AllowedStates  []string `yaml:"allowed_states"`

	// Extraction
	ScriptBudget  time.Duration `yaml:"script_budget"`
	MaxImages     int           `yaml:"max_images"`
	FallbackCount int           `yaml:"fallback_count"`

	// Caching
	PageCacheTTL   time.Duration `yaml:"page_cache_ttl"`
	PageCacheBytes int64         `yaml:"page_cache_bytes"`

	// Dashboard
	ListenAddr string `yaml:"listen_addr"`
}

// Defaults returns a Config populated from defaults.go
func Defaults() *Config {
	return &Config{
		LogLevel:          DefaultLogLevel,
		JSONLog:           DefaultJSONLog,
		Renderer:          DefaultRenderer,
		NavigationTimeout: DefaultNavigationTimeout,
		Settle:            DefaultSettle,
		Headers:           map[string]string{},
		ProxyCooldown:     DefaultProxyCooldown,
		Headless:          DefaultHeadless,
		RateLimitRPS:      DefaultRateLimitRPS,
		RateLimitBurst:    DefaultRateLimitBurst,
		Limit:             DefaultLimit,
		Queries:           DefaultQueries(),
		DetailPolicy:      DefaultDetailPolicy,
		Make:              DefaultMake,
		Model:             DefaultModel,
		YearMin:           DefaultYearMin,
		YearMax:           DefaultYearMax,
		MileageCeiling:    DefaultMileageCeiling,
		AllowedStates:     append([]string(nil), DefaultAllowedStates...),
		ScriptBudget:      DefaultScriptBudget,
		MaxImages:         DefaultMaxImages,
		FallbackCount:     DefaultFallbackCount,
		PageCacheTTL:      DefaultPageCacheTTL,
		PageCacheBytes:    DefaultPageCacheBytes,
		ListenAddr:        DefaultListenAddr,
	}
}

// Load builds a Config by layering defaults, an optional YAML file, a .env
// file, LOTSCOUT_* environment variables and CLI flags, in that order.
// Caller should pass the executing *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	path := os.Getenv(EnvPrefix + "CONFIG")
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			path = f.Value.String()
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cmd != nil {
		if err := cfg.applyFlags(cmd); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, name, perr)
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" && err == nil {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, name, perr)
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" && err == nil {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, name, perr)
				return
			}
			*dst = b
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("LOG_LEVEL", &c.LogLevel)
	flag("JSON_LOG", &c.JSONLog)
	var renderer, policy string
	str("RENDERER", &renderer)
	str("DETAIL_POLICY", &policy)
	if renderer != "" {
		c.Renderer = models.RendererKind(strings.ToLower(renderer))
	}
	if policy != "" {
		c.DetailPolicy = models.DetailPolicy(strings.ToLower(policy))
	}
	dur("NAVIGATION_TIMEOUT", &c.NavigationTimeout)
	dur("SETTLE", &c.Settle)
	str("USER_AGENT", &c.UserAgent)
	list("PROXIES", &c.Proxies)
	dur("PROXY_COOLDOWN", &c.ProxyCooldown)
	flag("HEADLESS", &c.Headless)
	str("CHROME_PATH", &c.ChromePath)
	if v := os.Getenv(EnvPrefix + "RATE_LIMIT_RPS"); v != "" && err == nil {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			err = fmt.Errorf("%sRATE_LIMIT_RPS: %w", EnvPrefix, perr)
		} else {
			c.RateLimitRPS = f
		}
	}
	num("RATE_LIMIT_BURST", &c.RateLimitBurst)
	num("LIMIT", &c.Limit)
	num("PER_QUERY_LIMIT", &c.PerQueryLimit)
	str("MAKE", &c.Make)
	str("MODEL", &c.Model)
	num("YEAR_MIN", &c.YearMin)
	num("YEAR_MAX", &c.YearMax)
	num("MILEAGE_CEILING", &c.MileageCeiling)
	list("ALLOWED_STATES", &c.AllowedStates)
	dur("SCRIPT_BUDGET", &c.ScriptBudget)
	num("MAX_IMAGES", &c.MaxImages)
	num("FALLBACK_COUNT", &c.FallbackCount)
	dur("PAGE_CACHE_TTL", &c.PageCacheTTL)
	str("LISTEN_ADDR", &c.ListenAddr)

	// PORT is what most hosting platforms set
	if port := os.Getenv("PORT"); port != "" {
		c.ListenAddr = ":" + port
	}
	return err
}

func (c *Config) applyFlags(cmd *cobra.Command) error {
	fs := cmd.Flags()
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("verbose") {
		if v, _ := fs.GetBool("verbose"); v {
			c.LogLevel = "debug"
		}
	}
	if changed("quiet") {
		if v, _ := fs.GetBool("quiet"); v {
			c.LogLevel = "error"
		}
	}
	if changed("json") {
		c.JSONLog, _ = fs.GetBool("json")
	}
	if changed("renderer") {
		v, _ := fs.GetString("renderer")
		c.Renderer = models.RendererKind(strings.ToLower(v))
	}
	if changed("detail-policy") {
		v, _ := fs.GetString("detail-policy")
		c.DetailPolicy = models.DetailPolicy(strings.ToLower(v))
	}
	if changed("timeout") {
		v, _ := fs.GetString("timeout")
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", v, err)
		}
		c.NavigationTimeout = d
	}
	if changed("user-agent") {
		c.UserAgent, _ = fs.GetString("user-agent")
	}
	if changed("proxy") {
		c.Proxies, _ = fs.GetStringSlice("proxy")
	}
	if changed("header") {
		raw, _ := fs.GetStringArray("header")
		if c.Headers == nil {
			c.Headers = map[string]string{}
		}
		for k, v := range headers.ParseHeaders(raw) {
			c.Headers[k] = v
		}
	}
	if changed("headed") {
		if v, _ := fs.GetBool("headed"); v {
			c.Headless = false
		}
	}
	if changed("chrome-path") {
		c.ChromePath, _ = fs.GetString("chrome-path")
	}
	if changed("rate-limit") {
		c.RateLimitRPS, _ = fs.GetFloat64("rate-limit")
	}
	if changed("limit") {
		c.Limit, _ = fs.GetInt("limit")
	}
	if changed("per-query") {
		c.PerQueryLimit, _ = fs.GetInt("per-query")
	}
	if changed("addr") {
		c.ListenAddr, _ = fs.GetString("addr")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
