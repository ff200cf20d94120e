package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	LDAP         LDAPConfig         `yaml:"ldap"`
	Redis        RedisConfig        `yaml:"redis"`
	Membership   MembershipConfig   `yaml:"membership"`
	Notification NotificationConfig `yaml:"notification"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
}

// RedisConfig for the optional async notification queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MembershipConfig tunes team membership behavior.
type MembershipConfig struct {
	DefaultMaxMembers int `yaml:"default_max_members"`
	InviteTTLDays     int `yaml:"invite_ttl_days"`  // pending invites older than this are swept
	RequestTTLDays    int `yaml:"request_ttl_days"` // pending join requests older than this are cancelled
	SweepIntervalMins int `yaml:"sweep_interval_mins"`
}

// NotificationConfig tunes webhook delivery.
type NotificationConfig struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.applyDefaults()
	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "teamforge.db",
		},
		JWT: JWTConfig{
			Secret:     "change-me-in-production",
			ExpireHour: 24,
		},
		LDAP: LDAPConfig{
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		Membership: MembershipConfig{
			DefaultMaxMembers: 50,
			InviteTTLDays:     14,
			RequestTTLDays:    30,
			SweepIntervalMins: 60,
		},
		Notification: NotificationConfig{
			Enabled:        true,
			TimeoutSeconds: 10,
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == "" {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Mode == "" {
		c.Server.Mode = def.Server.Mode
	}
	if c.Database.Driver == "" {
		c.Database.Driver = def.Database.Driver
	}
	if c.Database.DSN == "" {
		c.Database.DSN = def.Database.DSN
	}
	if c.JWT.Secret == "" {
		c.JWT.Secret = def.JWT.Secret
	}
	if c.JWT.ExpireHour == 0 {
		c.JWT.ExpireHour = def.JWT.ExpireHour
	}
	if c.LDAP.Port == 0 {
		c.LDAP.Port = def.LDAP.Port
	}
	if c.LDAP.UserFilter == "" {
		c.LDAP.UserFilter = def.LDAP.UserFilter
	}
	if c.Membership.DefaultMaxMembers == 0 {
		c.Membership.DefaultMaxMembers = def.Membership.DefaultMaxMembers
	}
	if c.Membership.InviteTTLDays == 0 {
		c.Membership.InviteTTLDays = def.Membership.InviteTTLDays
	}
	if c.Membership.RequestTTLDays == 0 {
		c.Membership.RequestTTLDays = def.Membership.RequestTTLDays
	}
	if c.Membership.SweepIntervalMins == 0 {
		c.Membership.SweepIntervalMins = def.Membership.SweepIntervalMins
	}
	if c.Notification.TimeoutSeconds == 0 {
		c.Notification.TimeoutSeconds = def.Notification.TimeoutSeconds
	}
}

// overrideFromEnv lets container deployments override file config.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("JWT_EXPIRE_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.JWT.ExpireHour = n
		}
	}
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		c.Redis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
	if v := os.Getenv("LDAP_ENABLED"); v != "" {
		c.LDAP.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("NOTIFY_ENABLED"); v != "" {
		c.Notification.Enabled = v == "true" || v == "1"
	}
}
