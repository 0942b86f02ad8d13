package wallet

import (
	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers for
// every engine operation.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" address).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of SHA-256(pubkey)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx creates a signed transaction. chainID must match the target network.
// nonce should match the account's current nonce.
func (w *Wallet) NewTx(chainID string, typ core.TxType, nonce, fee uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(chainID, typ, w.pub.Hex(), nonce, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Transfer creates a signed transfer transaction.
func (w *Wallet) Transfer(chainID, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransfer, nonce, fee, core.TransferPayload{
		To:     to,
		Amount: amount,
	})
}

// Deposit creates a signed treasury deposit transaction.
func (w *Wallet) Deposit(chainID string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxDeposit, nonce, fee, core.DepositPayload{Amount: amount})
}

// Withdraw creates a signed treasury withdrawal transaction (owner only).
func (w *Wallet) Withdraw(chainID string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxWithdraw, nonce, fee, core.WithdrawPayload{Amount: amount})
}

// AddTemplate registers a guessable template from its raw answer (owner
// only). The answer is hashed locally; only the commitment leaves the wallet.
func (w *Wallet) AddTemplate(chainID, answer string, baseReward uint64, d core.Difficulty, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxAddTemplate, nonce, fee, core.AddTemplatePayload{
		AnswerHash: core.AnswerHash(answer),
		BaseReward: baseReward,
		Difficulty: d,
	})
}

// DeactivateTemplate soft-deletes a template (owner only).
func (w *Wallet) DeactivateTemplate(chainID string, templateID, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxDeactivateTemplate, nonce, fee, core.DeactivateTemplatePayload{
		TemplateID: templateID,
	})
}

// NewGame starts a fresh round after the previous one resolved.
func (w *Wallet) NewGame(chainID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxNewGame, nonce, fee, core.NewGamePayload{})
}

// SubmitGuess submits a raw guess against the sender's round.
func (w *Wallet) SubmitGuess(chainID, guess string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxSubmitGuess, nonce, fee, core.SubmitGuessPayload{Guess: guess})
}

// BuyHint buys the current round's hint entitlement.
func (w *Wallet) BuyHint(chainID string, payment, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBuyHint, nonce, fee, core.BuyHintPayload{Payment: payment})
}

// AddFriend appends friend to the sender's friend list.
func (w *Wallet) AddFriend(chainID, friend string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxAddFriend, nonce, fee, core.AddFriendPayload{Friend: friend})
}

// RemoveFriend removes friend from the sender's friend list.
func (w *Wallet) RemoveFriend(chainID, friend string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxRemoveFriend, nonce, fee, core.RemoveFriendPayload{Friend: friend})
}
