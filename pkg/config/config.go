// Package config assembles the static startup parameters of the service:
// endpoints, contract addresses, chunk sizes and refresh intervals.
// Values come from an optional YAML file (CONFIG_FILE) overridden by
// environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/d10r/sup-metrics-api/pkg/utils"
)

type Config struct {
	// HTTP bind address.
	Addr string `yaml:"addr"`

	// Snapshot store: "file" or "redis".
	StoreBackend string `yaml:"storeBackend"`
	DataDir      string `yaml:"dataDir"`

	// External sources.
	ProgramSubgraphURL    string `yaml:"programSubgraphUrl"`
	DelegationSubgraphURL string `yaml:"delegationSubgraphUrl"`
	ScoreAPIURL           string `yaml:"scoreApiUrl"`
	SpaceHubURL           string `yaml:"spaceHubUrl"`
	SpaceID               string `yaml:"spaceId"`
	RPCURL                string `yaml:"rpcUrl"`
	EthRPCURL             string `yaml:"ethRpcUrl"`

	// Contracts. Token, program manager, community charge and vesting
	// treasury live on the token's host chain; DAO treasury and foundation
	// on Ethereum mainnet.
	TokenAddress           string `yaml:"tokenAddress"`
	L1TokenAddress         string `yaml:"l1TokenAddress"`
	ProgramManagerAddress  string `yaml:"programManagerAddress"`
	CommunityChargeAddress string `yaml:"communityChargeAddress"`
	VestingTreasuryAddress string `yaml:"vestingTreasuryAddress"`
	DAOTreasuryAddress     string `yaml:"daoTreasuryAddress"`
	FoundationAddress      string `yaml:"foundationAddress"`

	// Optional newline-separated list of extra holder addresses.
	HoldersFile string `yaml:"holdersFile"`

	// Batching limits.
	ScoreChunkSize         int `yaml:"scoreChunkSize"`
	BalanceBatchSize       int `yaml:"balanceBatchSize"`
	OwnerLookupParallelism int `yaml:"ownerLookupParallelism"`

	// Refresh cadence per metric. Zero disables scheduling.
	ScoresRefreshInterval       time.Duration `yaml:"-"`
	DistributionRefreshInterval time.Duration `yaml:"-"`
}

// fileDurations mirrors the duration fields as strings for YAML decoding.
type fileDurations struct {
	ScoresRefreshInterval       string `yaml:"scoresRefreshInterval"`
	DistributionRefreshInterval string `yaml:"distributionRefreshInterval"`
}

func defaults() *Config {
	return &Config{
		Addr:                        ":3000",
		StoreBackend:                "file",
		DataDir:                     "./data",
		ScoreChunkSize:              500,
		BalanceBatchSize:            50,
		OwnerLookupParallelism:      16,
		ScoresRefreshInterval:       6 * time.Hour,
		DistributionRefreshInterval: 1 * time.Hour,
	}
}

// Load builds the config from defaults, an optional YAML file and the
// environment, in that precedence order.
func Load() (*Config, error) {
	cfg := defaults()

	if path := utils.Env("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		var fd fileDurations
		if err := yaml.Unmarshal(raw, &fd); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if fd.ScoresRefreshInterval != "" {
			d, err := time.ParseDuration(fd.ScoresRefreshInterval)
			if err != nil {
				return nil, fmt.Errorf("scoresRefreshInterval: %w", err)
			}
			cfg.ScoresRefreshInterval = d
		}
		if fd.DistributionRefreshInterval != "" {
			d, err := time.ParseDuration(fd.DistributionRefreshInterval)
			if err != nil {
				return nil, fmt.Errorf("distributionRefreshInterval: %w", err)
			}
			cfg.DistributionRefreshInterval = d
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = utils.Env("ADDR", c.Addr)
	c.StoreBackend = utils.Env("STORE_BACKEND", c.StoreBackend)
	c.DataDir = utils.Env("DATA_DIR", c.DataDir)

	c.ProgramSubgraphURL = utils.Env("PROGRAM_SUBGRAPH_URL", c.ProgramSubgraphURL)
	c.DelegationSubgraphURL = utils.Env("DELEGATION_SUBGRAPH_URL", c.DelegationSubgraphURL)
	c.ScoreAPIURL = utils.Env("SCORE_API_URL", c.ScoreAPIURL)
	c.SpaceHubURL = utils.Env("SPACE_HUB_URL", c.SpaceHubURL)
	c.SpaceID = utils.Env("SPACE_ID", c.SpaceID)
	c.RPCURL = utils.Env("RPC_URL", c.RPCURL)
	c.EthRPCURL = utils.Env("ETH_RPC_URL", c.EthRPCURL)

	c.TokenAddress = utils.NormalizeAddress(utils.Env("TOKEN_ADDRESS", c.TokenAddress))
	c.L1TokenAddress = utils.NormalizeAddress(utils.Env("L1_TOKEN_ADDRESS", c.L1TokenAddress))
	c.ProgramManagerAddress = utils.NormalizeAddress(utils.Env("PROGRAM_MANAGER_ADDRESS", c.ProgramManagerAddress))
	c.CommunityChargeAddress = utils.NormalizeAddress(utils.Env("COMMUNITY_CHARGE_ADDRESS", c.CommunityChargeAddress))
	c.VestingTreasuryAddress = utils.NormalizeAddress(utils.Env("VESTING_TREASURY_ADDRESS", c.VestingTreasuryAddress))
	c.DAOTreasuryAddress = utils.NormalizeAddress(utils.Env("DAO_TREASURY_ADDRESS", c.DAOTreasuryAddress))
	c.FoundationAddress = utils.NormalizeAddress(utils.Env("FOUNDATION_ADDRESS", c.FoundationAddress))

	c.HoldersFile = utils.Env("HOLDERS_FILE", c.HoldersFile)

	c.ScoreChunkSize = utils.EnvInt("SCORE_CHUNK_SIZE", c.ScoreChunkSize)
	c.BalanceBatchSize = utils.EnvInt("BALANCE_BATCH_SIZE", c.BalanceBatchSize)
	c.OwnerLookupParallelism = utils.EnvInt("OWNER_LOOKUP_PARALLELISM", c.OwnerLookupParallelism)

	c.ScoresRefreshInterval = utils.EnvDuration("SCORES_REFRESH_INTERVAL", c.ScoresRefreshInterval)
	c.DistributionRefreshInterval = utils.EnvDuration("DISTRIBUTION_REFRESH_INTERVAL", c.DistributionRefreshInterval)
}

// Validate checks the required external endpoints and contract addresses.
func (c *Config) Validate() error {
	required := map[string]string{
		"PROGRAM_SUBGRAPH_URL":     c.ProgramSubgraphURL,
		"DELEGATION_SUBGRAPH_URL":  c.DelegationSubgraphURL,
		"SCORE_API_URL":            c.ScoreAPIURL,
		"SPACE_HUB_URL":            c.SpaceHubURL,
		"SPACE_ID":                 c.SpaceID,
		"RPC_URL":                  c.RPCURL,
		"ETH_RPC_URL":              c.EthRPCURL,
		"TOKEN_ADDRESS":            c.TokenAddress,
		"L1_TOKEN_ADDRESS":         c.L1TokenAddress,
		"PROGRAM_MANAGER_ADDRESS":  c.ProgramManagerAddress,
		"COMMUNITY_CHARGE_ADDRESS": c.CommunityChargeAddress,
		"VESTING_TREASURY_ADDRESS": c.VestingTreasuryAddress,
		"DAO_TREASURY_ADDRESS":     c.DAOTreasuryAddress,
		"FOUNDATION_ADDRESS":       c.FoundationAddress,
	}
	for key, val := range required {
		if val == "" {
			return fmt.Errorf("missing required config %s", key)
		}
	}
	if c.StoreBackend != "file" && c.StoreBackend != "redis" {
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	return nil
}
