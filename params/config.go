package params

import (
	"math/big"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Market holds the settlement parameters fixed at initialization.
type Market struct {
	CommissionBps uint16
	Treasury      string // hex address receiving commission proceeds
	Operator      string // privileged operator address
	Self          string // engine identity: EIP-712 verifying contract
	LazyMintToken string // collection address mint vouchers redeem into
	ChainID       *big.Int
}

// Node holds process-level settings.
type Node struct {
	ListenAddr string
	DBPath     string
	LogFile    string
}

type Config struct {
	Market Market
	Node   Node
}

func Default() Config {
	return Config{
		Market: Market{
			CommissionBps: 250, // 2.5%
			Treasury:      "0x7Adb261Bea663ee06E4ff0a657E65aE91aC7167f",
			Operator:      "0x0000000000000000000000000000000000000001",
			Self:          "0x0000000000000000000000000000000000000002",
			LazyMintToken: "0x0000000000000000000000000000000000000003",
			ChainID:       big.NewInt(1337), // local dev chain
		},
		Node: Node{
			ListenAddr: ":8080",
			DBPath:     "data/marketd",
			LogFile:    "data/marketd.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if bps := os.Getenv("MARKET_COMMISSION_BPS"); bps != "" {
		if v, err := strconv.ParseUint(bps, 10, 16); err == nil {
			cfg.Market.CommissionBps = uint16(v)
		}
	}
	if treasury := os.Getenv("MARKET_TREASURY"); treasury != "" {
		cfg.Market.Treasury = treasury
	}
	if operator := os.Getenv("MARKET_OPERATOR"); operator != "" {
		cfg.Market.Operator = operator
	}
	if self := os.Getenv("MARKET_SELF"); self != "" {
		cfg.Market.Self = self
	}
	if lazy := os.Getenv("MARKET_LAZY_MINT_TOKEN"); lazy != "" {
		cfg.Market.LazyMintToken = lazy
	}
	if chain := os.Getenv("MARKET_CHAIN_ID"); chain != "" {
		if v, err := strconv.ParseInt(chain, 10, 64); err == nil {
			cfg.Market.ChainID = big.NewInt(v)
		}
	}

	if listen := os.Getenv("API_LISTEN"); listen != "" {
		cfg.Node.ListenAddr = listen
	}
	if db := os.Getenv("DB_PATH"); db != "" {
		cfg.Node.DBPath = db
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Node.LogFile = logFile
	}

	return cfg
}
