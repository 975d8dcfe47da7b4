package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type CoordinatorConfig struct {
	Network string `yaml:"network"` // CAIP-2 id reported in quotes
	PayTo   string `yaml:"pay_to"`  // coordinator settlement wallet
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Port      int           `yaml:"port"`
	AdminKey  string        `yaml:"admin_key"`
	JWTSecret string        `yaml:"jwt_secret"`
	JWTTTL    time.Duration `yaml:"jwt_ttl"`
}

type MatchingConfig struct {
	LivenessTimeout time.Duration `yaml:"liveness_timeout"`
	AckWindow       time.Duration `yaml:"ack_window"`        // ASSIGNED to start-ack deadline
	RunningTimeout  time.Duration `yaml:"running_timeout"`   // RUNNING hard deadline
	AssignTimeout   time.Duration `yaml:"assign_timeout"`    // overall matching budget
	AssignBaseDelay time.Duration `yaml:"assign_base_delay"` // first backoff step
	MaxRevocations  int           `yaml:"max_revocations"`   // before a worker is marked unhealthy
	MaxRematches    int           `yaml:"max_rematches"`     // revoked-assignment rematch budget
}

type SettlementConfig struct {
	VenueURL       string        `yaml:"venue_url"`       // swap-quote API base
	DistributorURL string        `yaml:"distributor_url"` // payout/burn RPC base
	InputMint      string        `yaml:"input_mint"`
	OutputMint     string        `yaml:"output_mint"`
	SlippageBps    int           `yaml:"slippage_bps"`
	TreasuryAddr   string        `yaml:"treasury_addr"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	Retention      time.Duration `yaml:"retention"` // terminal-job archive window
}

type ReputationConfig struct {
	LedgerURL string        `yaml:"ledger_url"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Workers   int           `yaml:"workers"` // fire-and-forget post pool size
}

type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Web         WebConfig         `yaml:"web"`
	Matching    MatchingConfig    `yaml:"matching"`
	Settlement  SettlementConfig  `yaml:"settlement"`
	Reputation  ReputationConfig  `yaml:"reputation"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 4020
	}
	if cfg.Web.JWTTTL <= 0 {
		cfg.Web.JWTTTL = 30 * time.Minute
	}
	if cfg.Coordinator.Network == "" {
		cfg.Coordinator.Network = "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
	}
	cfg.Matching = normalizeMatching(cfg.Matching)
	if cfg.Settlement.SlippageBps <= 0 {
		cfg.Settlement.SlippageBps = 50
	}
	if cfg.Settlement.SweepInterval <= 0 {
		cfg.Settlement.SweepInterval = time.Minute
	}
	if cfg.Settlement.StaleAfter <= 0 {
		cfg.Settlement.StaleAfter = 10 * time.Minute
	}
	if cfg.Settlement.Retention <= 0 {
		cfg.Settlement.Retention = 30 * 24 * time.Hour
	}
	if cfg.Reputation.CacheTTL <= 0 {
		cfg.Reputation.CacheTTL = 5 * time.Minute
	}
	if cfg.Reputation.Workers <= 0 {
		cfg.Reputation.Workers = 4
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Settlement.TreasuryAddr == "" {
		return nil, errors.New("settlement.treasury_addr is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeMatching(m MatchingConfig) MatchingConfig {
	if m.LivenessTimeout <= 0 {
		m.LivenessTimeout = 45 * time.Second
	}
	if m.AckWindow <= 0 {
		m.AckWindow = 15 * time.Second
	}
	if m.RunningTimeout <= 0 {
		m.RunningTimeout = 5 * time.Minute
	}
	if m.AssignTimeout <= 0 {
		m.AssignTimeout = 30 * time.Second
	}
	if m.AssignBaseDelay <= 0 {
		m.AssignBaseDelay = 250 * time.Millisecond
	}
	if m.MaxRevocations <= 0 {
		m.MaxRevocations = 3
	}
	if m.MaxRematches <= 0 {
		m.MaxRematches = 3
	}
	return m
}
