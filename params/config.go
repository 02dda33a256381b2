package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Chain struct {
	ID            int64
	DomainName    string
	DomainVersion string
	// VerifyingContract anchors the EIP-712 domain. Hex address string.
	VerifyingContract string
}

type Fees struct {
	ProtocolFeeBps    uint16
	RoyaltyCeilingBps uint16
	// ProtocolRecipient collects the protocol fee leg. Hex address string.
	ProtocolRecipient string
}

type Node struct {
	DBPath  string
	APIAddr string
	// Listen is the libp2p multiaddr for the settlement gossip announcer.
	// Empty disables gossip.
	Listen  string
	LogFile string
}

type Config struct {
	Chain Chain
	Fees  Fees
	Node  Node
}

func Default() Config {
	return Config{
		Chain: Chain{
			ID:                1337,
			DomainName:        "OpenLoot Exchange",
			DomainVersion:     "1",
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Fees: Fees{
			ProtocolFeeBps:    200, // 2%
			RoyaltyCeilingBps: 1000,
			ProtocolRecipient: "0x0000000000000000000000000000000000000001",
		},
		Node: Node{
			DBPath:  "data/exchange",
			APIAddr: ":8080",
			LogFile: "data/exchange.log",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment
// variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Chain.ID = id
		}
	}
	if v := os.Getenv("DOMAIN_NAME"); v != "" {
		cfg.Chain.DomainName = v
	}
	if v := os.Getenv("DOMAIN_VERSION"); v != "" {
		cfg.Chain.DomainVersion = v
	}
	if v := os.Getenv("VERIFYING_CONTRACT"); v != "" {
		cfg.Chain.VerifyingContract = v
	}

	if v := os.Getenv("PROTOCOL_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Fees.ProtocolFeeBps = uint16(bps)
		}
	}
	if v := os.Getenv("ROYALTY_CEILING_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Fees.RoyaltyCeilingBps = uint16(bps)
		}
	}
	if v := os.Getenv("FEE_RECIPIENT"); v != "" {
		cfg.Fees.ProtocolRecipient = v
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Node.Listen = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}
