package treasury

import (
	"encoding/json"
	"fmt"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/vm"
)

func init() {
	vm.Register(core.TxTransfer, handleTransfer)
	vm.Register(core.TxDeposit, handleDeposit)
	vm.Register(core.TxWithdraw, handleWithdraw)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer payload: %w", err)
	}
	if p.Amount == 0 {
		return fmt.Errorf("transfer amount must be > 0")
	}
	if p.To == "" {
		return fmt.Errorf("transfer to address required")
	}
	if p.To == core.TreasuryAddress {
		return fmt.Errorf("use deposit to fund the treasury")
	}

	if err := move(ctx.State, ctx.Tx.From, p.To, p.Amount); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventTokenTransfer,
		Data: map[string]any{
			"from":   ctx.Tx.From,
			"to":     p.To,
			"amount": p.Amount,
		},
	})
	return nil
}

// handleDeposit moves the sender's tokens into the reward pool. Anyone may
// deposit; sponsors topping up the pool need no special standing.
func handleDeposit(ctx *vm.Context, payload json.RawMessage) error {
	var p core.DepositPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode deposit payload: %w", err)
	}
	if p.Amount == 0 {
		return fmt.Errorf("deposit amount must be > 0")
	}

	if err := move(ctx.State, ctx.Tx.From, core.TreasuryAddress, p.Amount); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventTreasuryDeposit,
		Data: map[string]any{"from": ctx.Tx.From, "amount": p.Amount},
	})
	return nil
}

// handleWithdraw pays treasury funds out to the owner. The treasury must
// retain at least the configured reserve floor after the withdrawal so
// running rounds keep their payouts covered.
func handleWithdraw(ctx *vm.Context, payload json.RawMessage) error {
	var p core.WithdrawPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode withdraw payload: %w", err)
	}
	if p.Amount == 0 {
		return fmt.Errorf("withdraw amount must be > 0")
	}

	params, err := ctx.State.GetParams()
	if err != nil {
		return fmt.Errorf("engine params: %w", err)
	}
	if ctx.Tx.From != params.Owner {
		return core.ErrUnauthorized
	}

	treasury, err := ctx.State.GetAccount(core.TreasuryAddress)
	if err != nil {
		return err
	}
	if treasury.Balance < p.Amount {
		return fmt.Errorf("%w: have %d, need %d", core.ErrInsufficientTreasury, treasury.Balance, p.Amount)
	}
	if treasury.Balance-p.Amount < params.ReserveFloor {
		return fmt.Errorf("%w: %d would remain, floor is %d",
			core.ErrInsufficientReserve, treasury.Balance-p.Amount, params.ReserveFloor)
	}

	if err := move(ctx.State, core.TreasuryAddress, ctx.Tx.From, p.Amount); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventTreasuryWithdrawal,
		Data: map[string]any{"to": ctx.Tx.From, "amount": p.Amount},
	})
	return nil
}

// move debits amount from one account and credits it to another.
func move(state core.State, from, to string, amount uint64) error {
	src, err := state.GetAccount(from)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return fmt.Errorf("insufficient balance: have %d, need %d", src.Balance, amount)
	}
	src.Balance -= amount
	if err := state.SetAccount(src); err != nil {
		return err
	}
	dst, err := state.GetAccount(to)
	if err != nil {
		return err
	}
	dst.Balance += amount
	return state.SetAccount(dst)
}
