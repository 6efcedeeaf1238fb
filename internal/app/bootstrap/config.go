package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the IAM core.
// It merges file defaults and environment overrides so the same binary
// serves local bootstrap and deployed environments.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL   string
	MaxDBConns    int32
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTPrivateKeyPEM  string
	JWTPrivateKeyPath string

	BcryptCost int

	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	ChallengeTTL       time.Duration
	PermissionCacheTTL time.Duration
	TOTPReplayTTL      time.Duration
	BackupCodeCount    int

	KafkaBrokers []string
	KafkaTopics  map[string]string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It stays separate from Config so runtime-only fields never leak into the file format.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL   string `yaml:"postgres_url"`
		MaxDBConns    int    `yaml:"max_db_conns"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
	} `yaml:"dependencies"`
	Tokens struct {
		PrivateKeyPath       string `yaml:"private_key_path"`
		AccessTTLMinutes     int    `yaml:"access_ttl_minutes"`
		RefreshTTLHours      int    `yaml:"refresh_ttl_hours"`
		ChallengeTTLMinutes  int    `yaml:"challenge_ttl_minutes"`
		PermCacheTTLMinutes  int    `yaml:"permission_cache_ttl_minutes"`
		TOTPReplayTTLSeconds int    `yaml:"totp_replay_ttl_seconds"`
		BackupCodeCount      int    `yaml:"backup_code_count"`
		BcryptCost           int    `yaml:"bcrypt_cost"`
	} `yaml:"tokens"`
	Events struct {
		Brokers []string          `yaml:"brokers"`
		Topics  map[string]string `yaml:"topics"`
		Outbox  struct {
			PollSeconds     int `yaml:"poll_seconds"`
			BatchSize       int `yaml:"batch_size"`
			ClaimTTLSeconds int `yaml:"claim_ttl_seconds"`
			MaxRetries      int `yaml:"max_retries"`
		} `yaml:"outbox"`
	} `yaml:"events"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "iamcore",
		HTTPPort:           8080,
		GRPCPort:           9090,
		MaxDBConns:         20,
		RedisAddr:          "localhost:6379",
		BcryptCost:         12,
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    24 * time.Hour,
		ChallengeTTL:       5 * time.Minute,
		PermissionCacheTTL: 5 * time.Minute,
		TOTPReplayTTL:      90 * time.Second,
		BackupCodeCount:    10,
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    100,
		OutboxClaimTTL:     30 * time.Second,
		OutboxMaxRetries:   5,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			var f configFile
			if err := yaml.Unmarshal(raw, &f); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
			applyFile(&cfg, f)
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisAddr = envOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPrivateKeyPath = envOrDefault("JWT_PRIVATE_KEY_PATH", cfg.JWTPrivateKeyPath)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.BackupCodeCount = envInt("MFA_BACKUP_CODE_COUNT", cfg.BackupCodeCount)

	cfg.AccessTokenTTL = time.Duration(envInt("ACCESS_TOKEN_TTL_MINUTES", int(cfg.AccessTokenTTL.Minutes()))) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(envInt("REFRESH_TOKEN_TTL_HOURS", int(cfg.RefreshTokenTTL.Hours()))) * time.Hour
	cfg.ChallengeTTL = time.Duration(envInt("MFA_CHALLENGE_TTL_MINUTES", int(cfg.ChallengeTTL.Minutes()))) * time.Minute
	cfg.PermissionCacheTTL = time.Duration(envInt("PERMISSION_CACHE_TTL_MINUTES", int(cfg.PermissionCacheTTL.Minutes()))) * time.Minute
	cfg.TOTPReplayTTL = time.Duration(envInt("TOTP_REPLAY_TTL_SECONDS", int(cfg.TOTPReplayTTL.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("missing REDIS_ADDR")
	}

	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort != 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort != 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.MaxDBConns > 0 {
		cfg.MaxDBConns = int32(f.Dependencies.MaxDBConns)
	}
	if f.Dependencies.RedisAddr != "" {
		cfg.RedisAddr = f.Dependencies.RedisAddr
	}
	if f.Dependencies.RedisPassword != "" {
		cfg.RedisPassword = f.Dependencies.RedisPassword
	}
	if f.Dependencies.RedisDB != 0 {
		cfg.RedisDB = f.Dependencies.RedisDB
	}
	if f.Tokens.PrivateKeyPath != "" {
		cfg.JWTPrivateKeyPath = f.Tokens.PrivateKeyPath
	}
	if f.Tokens.AccessTTLMinutes > 0 {
		cfg.AccessTokenTTL = time.Duration(f.Tokens.AccessTTLMinutes) * time.Minute
	}
	if f.Tokens.RefreshTTLHours > 0 {
		cfg.RefreshTokenTTL = time.Duration(f.Tokens.RefreshTTLHours) * time.Hour
	}
	if f.Tokens.ChallengeTTLMinutes > 0 {
		cfg.ChallengeTTL = time.Duration(f.Tokens.ChallengeTTLMinutes) * time.Minute
	}
	if f.Tokens.PermCacheTTLMinutes > 0 {
		cfg.PermissionCacheTTL = time.Duration(f.Tokens.PermCacheTTLMinutes) * time.Minute
	}
	if f.Tokens.TOTPReplayTTLSeconds > 0 {
		cfg.TOTPReplayTTL = time.Duration(f.Tokens.TOTPReplayTTLSeconds) * time.Second
	}
	if f.Tokens.BackupCodeCount > 0 {
		cfg.BackupCodeCount = f.Tokens.BackupCodeCount
	}
	if f.Tokens.BcryptCost > 0 {
		cfg.BcryptCost = f.Tokens.BcryptCost
	}
	if len(f.Events.Brokers) > 0 {
		cfg.KafkaBrokers = f.Events.Brokers
	}
	if len(f.Events.Topics) > 0 {
		cfg.KafkaTopics = f.Events.Topics
	}
	if f.Events.Outbox.PollSeconds > 0 {
		cfg.OutboxPollInterval = time.Duration(f.Events.Outbox.PollSeconds) * time.Second
	}
	if f.Events.Outbox.BatchSize > 0 {
		cfg.OutboxBatchSize = f.Events.Outbox.BatchSize
	}
	if f.Events.Outbox.ClaimTTLSeconds > 0 {
		cfg.OutboxClaimTTL = time.Duration(f.Events.Outbox.ClaimTTLSeconds) * time.Second
	}
	if f.Events.Outbox.MaxRetries > 0 {
		cfg.OutboxMaxRetries = f.Events.Outbox.MaxRetries
	}
}

// privateKeyPEM loads signing key material, preferring inline PEM over a file path.
// Returns nil when neither is configured; the signer falls back to an ephemeral pair.
func (c Config) privateKeyPEM() ([]byte, error) {
	if c.JWTPrivateKeyPEM != "" {
		return []byte(c.JWTPrivateKeyPEM), nil
	}
	if c.JWTPrivateKeyPath != "" {
		raw, err := os.ReadFile(c.JWTPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read jwt private key: %w", err)
		}
		return raw, nil
	}
	return nil, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
