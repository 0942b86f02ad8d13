package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/picwords/picchain/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer           TxType = "transfer"
	TxDeposit            TxType = "deposit"
	TxWithdraw           TxType = "withdraw"
	TxAddTemplate        TxType = "add_template"
	TxDeactivateTemplate TxType = "deactivate_template"
	TxNewGame            TxType = "new_game"
	TxSubmitGuess        TxType = "submit_guess"
	TxBuyHint            TxType = "buy_hint"
	TxAddFriend          TxType = "add_friend"
	TxRemoveFriend       TxType = "remove_friend"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// ChainID pins the transaction to one network so it cannot be replayed on
// another. Signature covers all fields except Signature itself.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// TransferPayload moves native tokens between accounts.
type TransferPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// DepositPayload moves the sender's tokens into the reward treasury.
// Anyone may deposit.
type DepositPayload struct {
	Amount uint64 `json:"amount"`
}

// WithdrawPayload moves treasury tokens to the owner, subject to the
// configured reserve floor. Owner-only.
type WithdrawPayload struct {
	Amount uint64 `json:"amount"`
}

// AddTemplatePayload registers a guessable round definition. Owner-only.
// AnswerHash must be the commitment of the normalized answer (see
// AnswerHash); the raw answer never goes on chain.
type AddTemplatePayload struct {
	AnswerHash string     `json:"answer_hash"`
	BaseReward uint64     `json:"base_reward"`
	Difficulty Difficulty `json:"difficulty"`
}

// DeactivateTemplatePayload soft-deletes a template. Owner-only.
type DeactivateTemplatePayload struct {
	TemplateID uint64 `json:"template_id"`
}

// NewGamePayload starts a fresh round; valid only when the current round is
// resolved (won or expired). Submitting a guess with no round on record
// starts one implicitly, so this is only needed after a win.
type NewGamePayload struct{}

// SubmitGuessPayload submits a raw guess against the sender's round.
// The guess is normalized before comparison.
type SubmitGuessPayload struct {
	Guess string `json:"guess"`
}

// BuyHintPayload buys the round's hint entitlement. Payment is debited
// from the sender and must cover the round's hint cost; any excess stays
// in the treasury.
type BuyHintPayload struct {
	Payment uint64 `json:"payment"`
}

// AddFriendPayload appends Friend to the sender's friend list.
type AddFriendPayload struct {
	Friend string `json:"friend"` // pubkey hex
}

// RemoveFriendPayload removes Friend from the sender's friend list.
type RemoveFriendPayload struct {
	Friend string `json:"friend"` // pubkey hex
}
