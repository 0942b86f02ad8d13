package vm

import (
	"fmt"
	"math"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
)

// Context is passed to every Handler and provides access to the chain state,
// the current block, the triggering transaction, and the event emitter.
type Context struct {
	State   core.State
	Block   *core.Block
	Tx      *core.Transaction
	Emitter *events.Emitter

	pending []events.Event
}

// Now returns the block timestamp in unix seconds. All round deadlines and
// expiry checks in the game modules use this clock, never the wall clock.
func (c *Context) Now() int64 {
	return c.Block.Time()
}

// Emit buffers ev for delivery once the transaction has been applied.
// Events from a reverted transaction are discarded with its state changes,
// so subscribers never observe a round the state says did not happen.
func (c *Context) Emit(ev events.Event) {
	ev.TxID = c.Tx.ID
	ev.BlockHeight = c.Block.Header.Height
	c.pending = append(c.pending, ev)
}

// flush delivers the buffered events in emit order.
func (c *Context) flush() {
	if c.Emitter == nil {
		c.pending = nil
		return
	}
	for _, ev := range c.pending {
		c.Emitter.Emit(ev)
	}
	c.pending = nil
}

// Executor applies transactions to the state using the global Handler registry.
type Executor struct {
	state   core.State
	emitter *events.Emitter
}

// NewExecutor creates an Executor with the given state and event emitter.
func NewExecutor(state core.State, emitter *events.Emitter) *Executor {
	return &Executor{state: state, emitter: emitter}
}

// ExecuteBlock applies all transactions in block sequentially.
// A failing transaction causes the whole block to be rejected.
// EventBlockCommit is emitted by the caller (consensus) after signing so
// the event carries the correct block hash.
func (e *Executor) ExecuteBlock(block *core.Block) error {
	for _, tx := range block.Transactions {
		if err := e.ExecuteTx(block, tx); err != nil {
			return fmt.Errorf("tx %s failed: %w", tx.ID, err)
		}
	}
	return nil
}

// ExecuteTx verifies and executes a single transaction with snapshot/rollback.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	ctx := &Context{
		State:   e.state,
		Block:   block,
		Tx:      tx,
		Emitter: e.emitter,
	}
	if err := e.applyTx(ctx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return err
	}
	ctx.flush()

	if e.emitter != nil {
		e.emitter.Emit(events.Event{
			Type:        events.EventTxExecuted,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
		})
	}
	return nil
}

// applyTx checks the nonce, moves the fee to the treasury, then dispatches to
// the handler. Fees feed the same pool that pays out game rewards.
func (e *Executor) applyTx(ctx *Context) error {
	tx := ctx.Tx
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("insufficient balance for fee: have %d need %d", acc.Balance, tx.Fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}

	if tx.Fee > 0 {
		treasury, err := e.state.GetAccount(core.TreasuryAddress)
		if err != nil {
			return fmt.Errorf("get treasury: %w", err)
		}
		treasury.Balance += tx.Fee
		if err := e.state.SetAccount(treasury); err != nil {
			return err
		}
	}

	return globalRegistry.Execute(tx.Type, ctx, tx.Payload)
}
