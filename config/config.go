package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Time       TimeConfig       `yaml:"time"`
	Auth       AuthConfig       `yaml:"auth"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Profiles   ProfilesConfig   `yaml:"profiles"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // sqlite | postgres
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// TimeConfig holds the household time zone and the decision engine's
// time-related tuning knobs.
type TimeConfig struct {
	Timezone string `yaml:"timezone"`
	// HeartbeatMaxGapMinutes is the largest gap between two client polls
	// that is still billed as usage. Must be agreed with the client
	// agent's poll interval; a larger gap is treated as absence.
	HeartbeatMaxGapMinutes int `yaml:"heartbeat_max_gap_minutes"`
	UsageRetentionDays     int `yaml:"usage_retention_days"`
}

// AuthConfig holds the parent authentication configuration. The admin
// password, session secret and child-view token come from the environment,
// not from this file.
type AuthConfig struct {
	AdminUser         string     `yaml:"admin_user"`
	SessionTTLMinutes int        `yaml:"session_ttl_minutes"`
	LDAP              LDAPConfig `yaml:"ldap"`
}

// LDAPConfig enables the directory bind authentication path.
type LDAPConfig struct {
	Enabled            bool   `yaml:"enabled"`
	URI                string `yaml:"uri"`
	BaseDN             string `yaml:"base_dn"`
	Realm              string `yaml:"realm"`
	ParentGroupCN      string `yaml:"parent_group_cn"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// PushConfig holds the VAPID keys for web push notifications. Push is
// disabled when the keys are empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// ProfilesConfig holds the directory for saved schedule profiles.
type ProfilesConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "./data/kidscontrol.sqlite3"
	}

	if cfg.Time.Timezone == "" {
		cfg.Time.Timezone = "Europe/Berlin"
	}
	if cfg.Time.HeartbeatMaxGapMinutes <= 0 {
		cfg.Time.HeartbeatMaxGapMinutes = 2
	}
	if cfg.Time.UsageRetentionDays <= 0 {
		cfg.Time.UsageRetentionDays = 14
	}

	if cfg.Auth.AdminUser == "" {
		cfg.Auth.AdminUser = "administrator"
	}
	if cfg.Auth.SessionTTLMinutes <= 0 {
		cfg.Auth.SessionTTLMinutes = 12 * 60
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Profiles.Dir == "" {
		cfg.Profiles.Dir = "./data/profiles"
	}

	return &cfg, nil
}
