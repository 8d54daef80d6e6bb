// Package config aggregates service configuration from the environment and
// the deployments file describing the on-chain contracts.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Mode selects who runs the claim protocol.
const (
	ModeEngine = "engine" // this service is the authoritative ledger
	ModeChain  = "chain"  // a deployed contract is; we orchestrate it
)

// Config is the environment-driven part of the configuration.
type Config struct {
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	HTTPPort int    `env:"API_HTTP_PORT" envDefault:"3000"`
	Mode     string `env:"ESCROW_MODE" envDefault:"engine"`

	HMACSecret      string        `env:"HMAC_SECRET"`
	AdminHMACSecret string        `env:"ADMIN_HMAC_SECRET"`
	HMACClockSkew   time.Duration `env:"HMAC_CLOCK_SKEW" envDefault:"60s"`

	IdempotencyWindow    time.Duration `env:"IDEMPOTENCY_WINDOW" envDefault:"10m"`
	IdempotencyStorePath string        `env:"IDEMPOTENCY_STORE_PATH"`

	PostgresDSN string `env:"POSTGRES_DSN"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	ClaimMetaTTL time.Duration `env:"CLAIM_META_TTL" envDefault:"720h"`
	EventChannel string        `env:"EVENT_CHANNEL" envDefault:"claimrails.events"`

	TokenDecimals  int    `env:"TOKEN_DECIMALS" envDefault:"18"`
	OwnerAddress   string `env:"ESCROW_OWNER_ADDRESS"`
	EngineAutoFund bool   `env:"ENGINE_AUTOFUND" envDefault:"false"`

	Chain struct {
		RPCURL         string        `env:"CHAIN_RPC_URL"`
		PrivateKey     string        `env:"CHAIN_PRIVATE_KEY"`
		ReceiptTimeout time.Duration `env:"CHAIN_RECEIPT_TIMEOUT" envDefault:"90s"`
	}

	DeploymentsPath string `env:"DEPLOYMENTS_PATH" envDefault:"deployments.json"`

	// Deployment is loaded from DeploymentsPath, not the environment.
	Deployment DeploymentConfig `env:"-"`
}

// DeploymentConfig mirrors deployments.json: addresses written out by the
// contract deploy scripts.
type DeploymentConfig struct {
	ChainID   int64  `json:"chainId"`
	Deployer  string `json:"deployer"`
	Contracts struct {
		MonToken    string `json:"MonToken"`
		CrushEscrow string `json:"CrushEscrow"`
	} `json:"contracts"`
}

// Load reads .env (if present), parses the environment and, in chain mode,
// the deployments file.
func Load() (*Config, error) {
	// A missing .env is fine; production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Mode != ModeEngine && cfg.Mode != ModeChain {
		return nil, fmt.Errorf("unknown ESCROW_MODE %q", cfg.Mode)
	}

	if cfg.Mode == ModeChain {
		dep, err := loadDeployments(cfg.DeploymentsPath)
		if err != nil {
			return nil, fmt.Errorf("load deployments: %w", err)
		}
		cfg.Deployment = *dep

		if cfg.Chain.RPCURL == "" {
			return nil, errors.New("CHAIN_RPC_URL is required in chain mode")
		}
		if cfg.Chain.PrivateKey == "" {
			return nil, errors.New("CHAIN_PRIVATE_KEY is required in chain mode")
		}
	}

	return cfg, nil
}

func loadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dep DeploymentConfig
	if err := json.Unmarshal(raw, &dep); err != nil {
		return nil, err
	}
	if dep.Contracts.CrushEscrow == "" {
		return nil, errors.New("deployments file missing CrushEscrow address")
	}
	if dep.Contracts.MonToken == "" {
		return nil, errors.New("deployments file missing MonToken address")
	}
	return &dep, nil
}
