package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Config struct {
	Chain     ChainConfig
	FileStore FileStoreConfig
	Secrets   SecretsConfig
	RoleStore RoleStoreConfig
	Server    ServerConfig
}

type ChainConfig struct {
	RPCURL                string
	ChainID               int64
	ContractAddress       string
	TokenAddress          string
	ExplorerURL           string
	GasLimit              uint64
	TxTimeout             time.Duration
	PollInterval          time.Duration
	RequiredConfirmations int
}

type FileStoreConfig struct {
	Provider         string // pinata|kubo
	PinataAPIURL     string
	PinataGatewayURL string
	IPFSAPIURL       string
	HTTPTimeout      time.Duration
}

// SecretsConfig names secrets; it never holds their values.
type SecretsConfig struct {
	Provider        string // env|aws
	AWSRegion       string
	PinataJWTSecret string
	SignerKeySecret string
}

type RoleStoreConfig struct {
	Driver    string // memory|file|redis|postgres
	Path      string
	RedisAddr string
	PGDSN     string
}

type ServerConfig struct {
	APIPort      string
	APIKey       string
	MCPTransport string // stdio|http
	MCPPort      string
	MCPAPIKey    string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Chain: ChainConfig{
			RPCURL:                getEnv("CHAIN_RPC_URL", "http://127.0.0.1:8545"),
			ChainID:               int64(getEnvAsInt("CHAIN_ID", 11155111)),
			ContractAddress:       getEnv("CONTRACT_ADDRESS", ""),
			TokenAddress:          getEnv("TOKEN_ADDRESS", ""),
			ExplorerURL:           getEnv("CHAIN_EXPLORER_URL", ""),
			GasLimit:              uint64(getEnvAsInt("TX_GAS_LIMIT", 0)),
			TxTimeout:             getEnvAsSeconds("TX_TIMEOUT_SEC", 3*time.Minute),
			PollInterval:          getEnvAsSeconds("TX_POLL_INTERVAL_SEC", 4*time.Second),
			RequiredConfirmations: getEnvAsInt("TX_REQUIRED_CONFIRMATIONS", 1),
		},
		FileStore: FileStoreConfig{
			Provider:         strings.ToLower(getEnv("FILESTORE_PROVIDER", "pinata")),
			PinataAPIURL:     getEnv("PINATA_API_URL", "https://api.pinata.cloud"),
			PinataGatewayURL: getEnv("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud"),
			IPFSAPIURL:       getEnv("IPFS_API_URL", "http://127.0.0.1:5001"),
			HTTPTimeout:      getEnvAsSeconds("IPFS_HTTP_TIMEOUT_SEC", 30*time.Second),
		},
		Secrets: SecretsConfig{
			Provider:        strings.ToLower(getEnv("SECRETS_PROVIDER", "env")),
			AWSRegion:       getEnv("AWS_REGION", ""),
			PinataJWTSecret: getEnv("PINATA_JWT_SECRET", "PINATA_JWT"),
			SignerKeySecret: getEnv("SIGNER_KEY_SECRET", "SIGNER_PRIVATE_KEY"),
		},
		RoleStore: RoleStoreConfig{
			Driver:    strings.ToLower(getEnv("ROLE_STORE_DRIVER", "file")),
			Path:      getEnv("ROLE_STORE_PATH", "procurement-role.json"),
			RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
			PGDSN:     getEnv("ROLE_PG_DSN", ""),
		},
		Server: ServerConfig{
			APIPort:      getEnv("API_PORT", "8080"),
			APIKey:       getEnv("API_KEY", ""),
			MCPTransport: strings.ToLower(getEnv("MCP_TRANSPORT", "stdio")),
			MCPPort:      getEnv("MCP_PORT", "3002"),
			MCPAPIKey:    getEnv("MCP_API_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL is required")
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}
	if !common.IsHexAddress(c.Chain.ContractAddress) {
		return fmt.Errorf("CONTRACT_ADDRESS must be a hex address, got %q", c.Chain.ContractAddress)
	}
	if c.Chain.TokenAddress != "" && !common.IsHexAddress(c.Chain.TokenAddress) {
		return fmt.Errorf("TOKEN_ADDRESS must be a hex address, got %q", c.Chain.TokenAddress)
	}
	if c.Chain.TxTimeout <= 0 || c.Chain.PollInterval <= 0 {
		return fmt.Errorf("TX_TIMEOUT_SEC and TX_POLL_INTERVAL_SEC must be positive")
	}
	if c.Chain.RequiredConfirmations < 1 {
		return fmt.Errorf("TX_REQUIRED_CONFIRMATIONS must be at least 1")
	}

	switch c.FileStore.Provider {
	case "pinata", "kubo":
	default:
		return fmt.Errorf("FILESTORE_PROVIDER must be pinata or kubo, got %q", c.FileStore.Provider)
	}

	switch c.Secrets.Provider {
	case "env", "aws":
	default:
		return fmt.Errorf("SECRETS_PROVIDER must be env or aws, got %q", c.Secrets.Provider)
	}

	switch c.RoleStore.Driver {
	case "memory", "file", "redis":
	case "postgres":
		if c.RoleStore.PGDSN == "" {
			return fmt.Errorf("ROLE_PG_DSN is required when ROLE_STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("ROLE_STORE_DRIVER must be memory, file, redis or postgres, got %q", c.RoleStore.Driver)
	}

	if c.Server.APIPort == "" {
		return fmt.Errorf("API_PORT is required")
	}
	switch c.Server.MCPTransport {
	case "stdio", "http":
	default:
		return fmt.Errorf("MCP_TRANSPORT must be stdio or http, got %q", c.Server.MCPTransport)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	secs := getEnvAsInt(key, -1)
	if secs <= 0 {
		return defaultValue
	}
	return time.Duration(secs) * time.Second
}
