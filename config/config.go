package config

import (
	"encoding/json"
	"os"

	"github.com/picwords/picchain/core"
)

// GenesisConfig describes the chain's initial state, including the game
// engine's construction-time parameters.
type GenesisConfig struct {
	ChainID string            `json:"chain_id"`
	Alloc   map[string]uint64 `json:"alloc"` // pubkey hex → initial balance
	// Owner is the pubkey hex allowed to manage templates and the treasury.
	Owner string `json:"owner"`
	// TreasuryBalance seeds the reward pool at genesis.
	TreasuryBalance uint64 `json:"treasury_balance"`
	// Engine overrides the default engine parameters when non-nil. The
	// Owner field above always wins over Engine.Owner.
	Engine *core.EngineParams `json:"engine,omitempty"`
}

// SeedPeer identifies a node to dial at startup.
type SeedPeer struct {
	ID   string `json:"id"`
	Addr string `json:"addr"` // host:port
}

// TLSConfig holds PEM file paths for mutual-TLS P2P connections.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`
	NodeCert string `json:"node_cert"`
	NodeKey  string `json:"node_key"`
}

// Config holds all node configuration.
type Config struct {
	NodeID       string        `json:"node_id"`
	DataDir      string        `json:"data_dir"`
	RPCPort      int           `json:"rpc_port"`
	RPCAuthToken string        `json:"rpc_auth_token"` // empty → open RPC
	P2PPort      int           `json:"p2p_port"`
	SeedPeers    []SeedPeer    `json:"seed_peers"`
	MaxBlockTxs  int           `json:"max_block_txs"` // max transactions per block; 0 → 500
	Validators   []string      `json:"validators"`    // authorised proposer pubkey hexes
	TLS          *TLSConfig    `json:"tls,omitempty"`
	Genesis      GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:      "node0",
		DataDir:     "./data",
		RPCPort:     8545,
		P2PPort:     30303,
		MaxBlockTxs: 500,
		Genesis: GenesisConfig{
			ChainID: "picchain-dev",
			Alloc:   map[string]uint64{},
		},
	}
}

// Load reads a JSON config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
