// Package config loads the settings of the wormhole-connect CLI from a YAML file, a .env file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// Config is the root configuration.
type Config struct {
	Network     NetworkConfig     `mapstructure:"network" yaml:"network"`
	Guardian    GuardianConfig    `mapstructure:"guardian" yaml:"guardian"`
	Attestation AttestationConfig `mapstructure:"attestation" yaml:"attestation"`
	// RPC overrides the registry RPC url of a chain, keyed by chain name or id.
	RPC       map[string]string `mapstructure:"rpc" yaml:"rpc"`
	Onchain   OnchainConfig     `mapstructure:"onchain" yaml:"onchain"`
	Telemetry TelemetryConfig   `mapstructure:"telemetry" yaml:"telemetry"`
	Log       LogConfig         `mapstructure:"log" yaml:"log"`
}

type NetworkConfig struct {
	Environment registry.Environment `mapstructure:"environment" yaml:"environment"` // mainnet or testnet
	ChainTable  string               `mapstructure:"chain_table" yaml:"chain_table"` // Optional: path of a chain table replacing the embedded one
}

// GuardianConfig selects how signed VAAs are fetched. GRPCEndpoint takes precedence over
// Hosts. When both are empty the registry's guardian hosts are used.
type GuardianConfig struct {
	Hosts        []string `mapstructure:"hosts" yaml:"hosts"`
	GRPCEndpoint string   `mapstructure:"grpc_endpoint" yaml:"grpc_endpoint"`
	APIKey       string   `mapstructure:"api_key" yaml:"api_key"` // Secret
}

type AttestationConfig struct {
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
	MaxAttempts   uint          `mapstructure:"max_attempts" yaml:"max_attempts"` // 0 retries until the context ends
}

// OnchainConfig holds the signing keys of every family.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type OnchainConfig struct {
	KMS      KMSConfig      `mapstructure:"kms" yaml:"kms"`
	EVM      EVMConfig      `mapstructure:"evm" yaml:"evm"`
	Solana   SolanaConfig   `mapstructure:"solana" yaml:"solana"`
	Aptos    AptosConfig    `mapstructure:"aptos" yaml:"aptos"`
	Algorand AlgorandConfig `mapstructure:"algorand" yaml:"algorand"`
	Near     NearConfig     `mapstructure:"near" yaml:"near"`
}

// KMSConfig is the AWS KMS key used to sign EVM transactions.
type KMSConfig struct {
	KeyID      string `mapstructure:"key_id" yaml:"key_id"`           // Secret: AWS KMS Key ID
	KeyRegion  string `mapstructure:"key_region" yaml:"key_region"`   // Secret: AWS KMS Key Region (e.g. us-west-1)
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"` // Optional: AWS shared config profile
}

// IsSet reports whether a KMS key is configured.
func (c KMSConfig) IsSet() bool {
	return c.KeyID != "" && c.KeyRegion != ""
}

type EVMConfig struct {
	PrivateKey string `mapstructure:"private_key" yaml:"private_key"` // Secret: hex private key. Prefer KMS keys instead.
}

type SolanaConfig struct {
	WalletKey string `mapstructure:"wallet_key" yaml:"wallet_key"` // Secret: base58 private key or a keypair file path
}

type AptosConfig struct {
	PrivateKey string `mapstructure:"private_key" yaml:"private_key"` // Secret
}

type AlgorandConfig struct {
	Mnemonic string `mapstructure:"mnemonic" yaml:"mnemonic"` // Secret: 25 word mnemonic
}

type NearConfig struct {
	AccountID  string `mapstructure:"account_id" yaml:"account_id"`
	PrivateKey string `mapstructure:"private_key" yaml:"private_key"` // Secret: "ed25519:<base58>"
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"` // Traces are dropped when empty
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Validate checks the settings that cannot be checked by unmarshalling.
func (c *Config) Validate() error {
	if err := c.Network.Environment.Validate(); err != nil {
		return err
	}
	if c.Attestation.RetryInterval <= 0 {
		return fmt.Errorf("attestation.retry_interval must be positive, got %s", c.Attestation.RetryInterval)
	}
	if (c.Onchain.Near.AccountID == "") != (c.Onchain.Near.PrivateKey == "") {
		return errors.New("onchain.near.account_id and onchain.near.private_key must be set together")
	}

	return nil
}

// Load loads the config from the file at filePath and the environment.
//
// A .env file in the working directory is loaded into the environment first, without
// overriding variables that are already set. If the config file does not exist the config is
// built from the environment alone. Env vars always override values from the file.
func Load(filePath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", filePath, err)
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := newViper()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("network.environment", string(registry.Testnet))
	v.SetDefault("attestation.retry_interval", "1s")
	v.SetDefault("attestation.max_attempts", 0)
	v.SetDefault("log.level", "info")

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// rpc.<chain> overrides set through the environment are not known to viper as keys
	for k, val := range rpcEnvOverrides() {
		if cfg.RPC == nil {
			cfg.RPC = map[string]string{}
		}
		cfg.RPC[k] = val
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	return godotenv.Load(path)
}

var (
	// envBindings maps config keys to the environment variables that can provide them.
	//
	// The first name is the preferred one. Later names are legacy names still honoured for
	// existing deployments. Viper uses the first variable that is set.
	envBindings = map[string][]string{
		"network.environment":        {"NETWORK_ENVIRONMENT", "WORMHOLE_NETWORK"},
		"network.chain_table":        {"NETWORK_CHAIN_TABLE"},
		"guardian.hosts":             {"GUARDIAN_HOSTS", "WORMHOLE_RPC_HOSTS"},
		"guardian.grpc_endpoint":     {"GUARDIAN_GRPC_ENDPOINT", "SPY_SERVICE_HOST"},
		"guardian.api_key":           {"GUARDIAN_API_KEY"},
		"attestation.retry_interval": {"ATTESTATION_RETRY_INTERVAL"},
		"attestation.max_attempts":   {"ATTESTATION_MAX_ATTEMPTS"},
		"onchain.kms.key_id":         {"ONCHAIN_KMS_KEY_ID", "KMS_KEY_ID"},
		"onchain.kms.key_region":     {"ONCHAIN_KMS_KEY_REGION", "KMS_KEY_REGION"},
		"onchain.kms.aws_profile":    {"ONCHAIN_KMS_AWS_PROFILE", "KMS_AWS_PROFILE"},
		"onchain.evm.private_key":    {"ONCHAIN_EVM_PRIVATE_KEY", "ETH_PRIVATE_KEY"},
		"onchain.solana.wallet_key":  {"ONCHAIN_SOLANA_WALLET_KEY", "SOLANA_PRIVATE_KEY"},
		"onchain.aptos.private_key":  {"ONCHAIN_APTOS_PRIVATE_KEY", "APTOS_PRIVATE_KEY"},
		"onchain.algorand.mnemonic":  {"ONCHAIN_ALGORAND_MNEMONIC", "ALGORAND_MNEMONIC"},
		"onchain.near.account_id":    {"ONCHAIN_NEAR_ACCOUNT_ID", "NEAR_ACCOUNT_ID"},
		"onchain.near.private_key":   {"ONCHAIN_NEAR_PRIVATE_KEY", "NEAR_PRIVATE_KEY"},
		"telemetry.otlp_endpoint":    {"TELEMETRY_OTLP_ENDPOINT", "OTLP_ENDPOINT"},
		"log.level":                  {"LOG_LEVEL"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
