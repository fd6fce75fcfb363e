package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Router     RouterConfig     `yaml:"router"`
	LLM        LLMConfig        `yaml:"llm"`
	Prompts    PromptsConfig    `yaml:"prompts"`
	AgentStore AgentStoreConfig `yaml:"agent_store"`
	Agents     []AgentEntry     `yaml:"agents"`
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
	Includes   []string         `yaml:"includes,omitempty"`
}

// RouterConfig holds the routing, budget and synthesis knobs.
type RouterConfig struct {
	PerAgentTimeout            time.Duration `yaml:"per_agent_timeout"`
	OverallTimeout             time.Duration `yaml:"overall_timeout"`
	SecondaryMax               int           `yaml:"secondary_max"`
	SecondaryFloor             time.Duration `yaml:"secondary_floor"`
	MinPrimaryConfidence       float64       `yaml:"min_primary_confidence"`
	NearThresholdMargin        float64       `yaml:"near_threshold_margin"`
	DisableSecondaries         bool          `yaml:"disable_secondaries"`
	SecondaryOnlyIfNoCitations bool          `yaml:"secondary_only_if_no_citations"`
	EnableCriticRefinement     bool          `yaml:"enable_critic_refinement"`
	ExecutionMode              string        `yaml:"execution_mode"` // "sequential" | "parallel"
	HistoryLimit               int           `yaml:"history_limit"`
	RegistryTTL                time.Duration `yaml:"registry_ttl"`
	RegistryRefreshSchedule    string        `yaml:"registry_refresh_schedule"` // cron expression, empty = off
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	Failover        FailoverConfig       `yaml:"failover"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit       RateLimitConfig      `yaml:"rate_limit"`
}

// FailoverConfig holds model failover settings.
type FailoverConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Fallbacks []string `yaml:"fallbacks"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// RateLimitConfig caps outbound LLM requests per provider.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Region      string        `yaml:"region,omitempty"` // bedrock only
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// PromptsConfig tunes the structured prompt service.
type PromptsConfig struct {
	Temperature float64           `yaml:"temperature"`
	MaxTokens   int               `yaml:"max_tokens"`
	Overrides   map[string]string `yaml:"overrides,omitempty"` // prompt name -> system template
}

// AgentStoreConfig selects where agent definitions are read from.
type AgentStoreConfig struct {
	Type  string `yaml:"type"` // "static" | "sqlite"
	Path  string `yaml:"path"`
	Scope string `yaml:"scope"`
}

// AgentEntry declares an agent in the config file.
type AgentEntry struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Disabled    bool   `yaml:"disabled"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// defaultDataDir returns $HOME/.docroute, or "./data" without a home directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".docroute")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Router: RouterConfig{
			PerAgentTimeout:            8 * time.Second,
			OverallTimeout:             15 * time.Second,
			SecondaryMax:               1,
			SecondaryFloor:             500 * time.Millisecond,
			MinPrimaryConfidence:       0.7,
			NearThresholdMargin:        0.05,
			SecondaryOnlyIfNoCitations: true,
			EnableCriticRefinement:     true,
			ExecutionMode:              "sequential",
			HistoryLimit:               6,
			RegistryTTL:                5 * time.Minute,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				Burst:             5,
			},
		},
		Prompts: PromptsConfig{
			Temperature: 0,
			MaxTokens:   1024,
		},
		AgentStore: AgentStoreConfig{
			Type:  "static",
			Path:  filepath.Join(defaultDataDir(), "agents.db"),
			Scope: "default",
		},
		Agents: []AgentEntry{
			{Key: "metadata", Name: "Metadata", Description: "Answers questions about document titles, senders, dates and types."},
			{Key: "content", Name: "Content", Description: "Answers questions grounded in document text."},
			{Key: "casual", Name: "Casual", Description: "Handles greetings and small talk."},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file yields the defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}
		// The main file wins over anything it includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("DOCROUTE_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps DOCROUTE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCROUTE_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("DOCROUTE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("DOCROUTE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("DOCROUTE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("DOCROUTE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	envDuration("DOCROUTE_PER_AGENT_TIMEOUT", &cfg.Router.PerAgentTimeout)
	envMillis("DOCROUTE_PER_AGENT_TIMEOUT_MS", &cfg.Router.PerAgentTimeout)
	envDuration("DOCROUTE_OVERALL_TIMEOUT", &cfg.Router.OverallTimeout)
	envMillis("DOCROUTE_OVERALL_TIMEOUT_MS", &cfg.Router.OverallTimeout)

	if v := os.Getenv("DOCROUTE_SECONDARY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Router.SecondaryMax = n
		}
	}
	if v := os.Getenv("DOCROUTE_MIN_PRIMARY_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Router.MinPrimaryConfidence = f
		}
	}
	envBool("DOCROUTE_DISABLE_SECONDARIES", &cfg.Router.DisableSecondaries)
	envBool("DOCROUTE_SECONDARY_ONLY_IF_NO_CITATIONS", &cfg.Router.SecondaryOnlyIfNoCitations)
	envBool("DOCROUTE_ENABLE_CRITIC_REFINEMENT", &cfg.Router.EnableCriticRefinement)
	if v := os.Getenv("DOCROUTE_EXECUTION_MODE"); v != "" {
		cfg.Router.ExecutionMode = v
	}
	if v := os.Getenv("DOCROUTE_REGISTRY_REFRESH_SCHEDULE"); v != "" {
		cfg.Router.RegistryRefreshSchedule = v
	}

	if v := os.Getenv("DOCROUTE_AGENT_STORE_TYPE"); v != "" {
		cfg.AgentStore.Type = v
	}
	if v := os.Getenv("DOCROUTE_AGENT_STORE_PATH"); v != "" {
		cfg.AgentStore.Path = v
	}

	// Per-provider API key overrides: DOCROUTE_LLM_PROVIDER_<NAME>_API_KEY
	for i := range cfg.LLM.Providers {
		envKey := fmt.Sprintf("DOCROUTE_LLM_PROVIDER_%s_API_KEY",
			strings.ToUpper(cfg.LLM.Providers[i].Name))
		if v := os.Getenv(envKey); v != "" {
			cfg.LLM.Providers[i].APIKey = v
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

func envMillis(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}

func envBool(key string, dst *bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	}
}

// decryptSecrets finds "enc:..." provider API keys and decrypts them in place.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		key := cfg.LLM.Providers[i].APIKey
		if !strings.HasPrefix(key, "enc:") {
			continue
		}
		plain, err := DecryptValue(strings.TrimPrefix(key, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("provider %s api_key: %w", cfg.LLM.Providers[i].Name, err)
		}
		cfg.LLM.Providers[i].APIKey = plain
	}
	return nil
}

// EncryptValue encrypts plaintext with AES-256-GCM under a passphrase-derived key.
// Output format: hex(salt) ":" hex(nonce+ciphertext).
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(sealed), nil
}

// DecryptValue reverses EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
