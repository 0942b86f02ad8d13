package config

import (
	"errors"
	"strings"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/crypto"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// CreateGenesisBlock builds and signs block #0 from the genesis config.
// It credits the alloc accounts, seeds the treasury, writes the engine
// parameters into state so they are covered by the state root, and commits.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	proposerPub := proposerPriv.Public()

	if cfg.Genesis.Owner == "" {
		return nil, errors.New("genesis: owner pubkey required")
	}
	if _, err := crypto.PubKeyFromHex(cfg.Genesis.Owner); err != nil {
		return nil, errors.New("genesis: owner must be a valid ed25519 pubkey hex")
	}

	// Credit all alloc accounts
	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		acc := &core.Account{
			Address: pubkeyHex,
			Balance: balance,
			Nonce:   0,
		}
		if err := state.SetAccount(acc); err != nil {
			return nil, err
		}
	}

	// Seed the reward pool
	if err := state.SetAccount(&core.Account{
		Address: core.TreasuryAddress,
		Balance: cfg.Genesis.TreasuryBalance,
	}); err != nil {
		return nil, err
	}

	// Engine parameters are frozen at genesis; the Owner field in the
	// genesis config always wins.
	params := cfg.Genesis.Engine
	if params == nil {
		params = core.DefaultEngineParams()
	}
	params.Owner = cfg.Genesis.Owner
	if err := state.SetParams(params); err != nil {
		return nil, err
	}

	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisHash, proposerPub.Hex(), nil)
	block.Header.StateRoot = stateRoot
	// Embed chain ID in the TxRoot so nodes can identify the network from
	// the genesis block alone.
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

// IsGenesisHash returns true if the hash is the canonical genesis prev-hash.
func IsGenesisHash(h string) bool {
	return strings.Count(h, "0") == len(h) && len(h) == 64
}
