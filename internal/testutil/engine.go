package testutil

import (
	"testing"
	"time"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/storage"
	"github.com/picwords/picchain/vm"
	"github.com/picwords/picchain/wallet"
)

// ChainID is the network id used by engine fixtures.
const ChainID = "picchain-test"

// Env is a game-engine fixture: an in-memory state with engine parameters,
// a funded treasury, an owner wallet and a transaction executor. All engine
// time flows through the timestamps passed to Run.
type Env struct {
	State   *storage.StateDB
	Exec    *vm.Executor
	Emitter *events.Emitter
	Params  *core.EngineParams
	Owner   *wallet.Wallet

	height int64
	events []events.Event
}

// NewEnv builds a fixture with default engine parameters and a treasury
// holding treasuryBalance.
func NewEnv(t *testing.T, treasuryBalance uint64) *Env {
	t.Helper()

	owner, err := wallet.Generate()
	if err != nil {
		t.Fatalf("generate owner wallet: %v", err)
	}

	state := NewStateDB()
	params := core.DefaultEngineParams()
	params.Owner = owner.PubKey()
	if err := state.SetParams(params); err != nil {
		t.Fatalf("set params: %v", err)
	}
	if err := state.SetAccount(&core.Account{
		Address: core.TreasuryAddress,
		Balance: treasuryBalance,
	}); err != nil {
		t.Fatalf("seed treasury: %v", err)
	}

	emitter := events.NewEmitter()
	env := &Env{
		State:   state,
		Exec:    vm.NewExecutor(state, emitter),
		Emitter: emitter,
		Params:  params,
		Owner:   owner,
	}
	for _, typ := range []events.EventType{
		events.EventGameStarted, events.EventGuessSubmitted, events.EventGameWon,
		events.EventGameExpired, events.EventHintPurchased, events.EventTemplateReg,
		events.EventTemplateDeact, events.EventFriendAdded, events.EventFriendRemoved,
		events.EventAchievement, events.EventTreasuryDeposit, events.EventTreasuryWithdrawal,
		events.EventTokenTransfer,
	} {
		emitter.Subscribe(typ, func(ev events.Event) { env.events = append(env.events, ev) })
	}
	return env
}

// NewWallet generates a fresh wallet with the given balance.
func (e *Env) NewWallet(t *testing.T, balance uint64) *wallet.Wallet {
	t.Helper()
	w, err := wallet.Generate()
	if err != nil {
		t.Fatalf("generate wallet: %v", err)
	}
	e.Fund(t, w.PubKey(), balance)
	return w
}

// Fund sets the address's balance, preserving its nonce.
func (e *Env) Fund(t *testing.T, address string, balance uint64) {
	t.Helper()
	acc, err := e.State.GetAccount(address)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	acc.Balance = balance
	if err := e.State.SetAccount(acc); err != nil {
		t.Fatalf("set account: %v", err)
	}
}

// Run signs a transaction from w, wraps it in a block stamped at the given
// unix-seconds time, and executes it.
func (e *Env) Run(t *testing.T, w *wallet.Wallet, typ core.TxType, payload any, at int64) error {
	t.Helper()
	acc, err := e.State.GetAccount(w.PubKey())
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	tx, err := w.NewTx(ChainID, typ, acc.Nonce, 0, payload)
	if err != nil {
		t.Fatalf("build tx: %v", err)
	}

	e.height++
	block := core.NewBlock(e.height, "", w.PubKey(), []*core.Transaction{tx})
	block.Header.Timestamp = at * int64(time.Second)
	return e.Exec.ExecuteTx(block, tx)
}

// MustRun is Run that fails the test on error.
func (e *Env) MustRun(t *testing.T, w *wallet.Wallet, typ core.TxType, payload any, at int64) {
	t.Helper()
	if err := e.Run(t, w, typ, payload, at); err != nil {
		t.Fatalf("%s: %v", typ, err)
	}
}

// AddTemplate registers a template from a raw answer as the owner and
// returns its id.
func (e *Env) AddTemplate(t *testing.T, answer string, baseReward uint64, d core.Difficulty, at int64) uint64 {
	t.Helper()
	e.MustRun(t, e.Owner, core.TxAddTemplate, core.AddTemplatePayload{
		AnswerHash: core.AnswerHash(answer),
		BaseReward: baseReward,
		Difficulty: d,
	}, at)
	ids, err := e.State.TemplateIDs()
	if err != nil {
		t.Fatalf("template ids: %v", err)
	}
	return ids[len(ids)-1]
}

// Balance returns the account balance for address.
func (e *Env) Balance(t *testing.T, address string) uint64 {
	t.Helper()
	acc, err := e.State.GetAccount(address)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acc.Balance
}

// Events returns every event captured so far.
func (e *Env) Events() []events.Event {
	return e.events
}

// EventsOfType filters captured events by type.
func (e *Env) EventsOfType(typ events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range e.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
