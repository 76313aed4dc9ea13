package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Remote struct {
		BaseURL         string `yaml:"base_url"`
		Token           string `yaml:"token"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"remote"`

	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Geo struct {
		GeocoderURL string  `yaml:"geocoder_url"`
		UserAgent   string  `yaml:"user_agent"`
		IPLookupURL string  `yaml:"ip_lookup_url"`
		DefaultLat  float64 `yaml:"default_lat"`
		DefaultLng  float64 `yaml:"default_lng"`
		RoadFactor  float64 `yaml:"road_factor"`
	} `yaml:"geo"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Sync struct {
		ReconcileOnStart bool `yaml:"reconcile_on_start"`
	} `yaml:"sync"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "data/softone.db"
	}
	if cfg.Geo.RoadFactor <= 0 {
		cfg.Geo.RoadFactor = 1.4
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) RemoteTimeout() time.Duration {
	if c.Remote.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

func (c *Config) RemoteCacheTTL() time.Duration {
	if c.Remote.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Remote.CacheTTLSeconds) * time.Second
}
