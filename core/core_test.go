package core_test

import (
	"testing"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/crypto"
	"github.com/picwords/picchain/wallet"
)

// TestTransactionSignVerify ensures transaction signing and verification work.
func TestTransactionSignVerify(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}

	tx, err := w.NewTx("test-chain", core.TxSubmitGuess, 0, 0, core.SubmitGuessPayload{Guess: "cat"})
	if err != nil {
		t.Fatalf("NewTx: %v", err)
	}
	if tx.ID == "" {
		t.Error("tx ID should be set after signing")
	}
	if err := tx.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	// Tamper with the fee to check that verification catches it.
	tx.Fee = 999
	if err := tx.Verify(); err == nil {
		t.Error("tampered tx should fail verification")
	}
}

// TestTransactionChainIDCoverage ensures ChainID is covered by the signature.
func TestTransactionChainIDCoverage(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := w.NewGame("chain-a", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	tx.ChainID = "chain-b"
	if err := tx.Verify(); err == nil {
		t.Error("changing the chain id must invalidate the signature")
	}
}

// TestBlockHashAndSign ensures block hashing is deterministic and signed.
func TestBlockHashAndSign(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	block := core.NewBlock(1, "prev", pub.Hex(), nil)
	h1 := block.ComputeHash()
	h2 := block.ComputeHash()
	if h1 != h2 {
		t.Error("block hash must be deterministic")
	}

	block.Sign(priv)
	if block.Hash == "" || block.Signature == "" {
		t.Error("Sign must set hash and signature")
	}
	if err := block.Verify(pub); err != nil {
		t.Errorf("block verification failed: %v", err)
	}
}

// TestBlockTime verifies the unix-seconds projection of the header timestamp.
func TestBlockTime(t *testing.T) {
	block := core.NewBlock(1, "prev", "p", nil)
	block.Header.Timestamp = 5_500_000_000 // 5.5 s in nanoseconds
	if got := block.Time(); got != 5 {
		t.Errorf("block time: got %d want 5", got)
	}
}

func TestMempoolAddAndDuplicate(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	pool := core.NewMempool()

	tx, err := w.SubmitGuess("test-chain", "cat", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := pool.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := pool.Add(tx); err == nil {
		t.Error("duplicate tx should be rejected")
	}
	if pool.Size() != 1 {
		t.Errorf("size: got %d want 1", pool.Size())
	}
}

func TestMempoolPendingOrderAndRemove(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	pool := core.NewMempool()

	var ids []string
	for i := uint64(0); i < 3; i++ {
		tx, err := w.SubmitGuess("test-chain", "cat", i, 0)
		if err != nil {
			t.Fatal(err)
		}
		if err := pool.Add(tx); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tx.ID)
	}

	pending := pool.Pending(10)
	if len(pending) != 3 {
		t.Fatalf("pending: got %d want 3", len(pending))
	}
	for i, tx := range pending {
		if tx.ID != ids[i] {
			t.Errorf("pending order at %d: got %s want %s", i, tx.ID, ids[i])
		}
	}

	pool.Remove(ids[:2])
	if pool.Size() != 1 {
		t.Errorf("size after remove: got %d want 1", pool.Size())
	}
	if rest := pool.Pending(10); len(rest) != 1 || rest[0].ID != ids[2] {
		t.Error("remaining tx mismatch after Remove")
	}
}

func TestMempoolRejectsBadSignature(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := w.SubmitGuess("test-chain", "cat", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	tx.Signature = "00"
	pool := core.NewMempool()
	if err := pool.Add(tx); err == nil {
		t.Error("tx with invalid signature should be rejected")
	}
}
