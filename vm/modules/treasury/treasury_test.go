package treasury

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/internal/testutil"
)

const t0 = int64(1_700_000_000)

func TestTransfer(t *testing.T) {
	env := testutil.NewEnv(t, 0)
	alice := env.NewWallet(t, 1000)
	bob := env.NewWallet(t, 0)

	env.MustRun(t, alice, core.TxTransfer, core.TransferPayload{To: bob.PubKey(), Amount: 300}, t0)

	require.EqualValues(t, 700, env.Balance(t, alice.PubKey()))
	require.EqualValues(t, 300, env.Balance(t, bob.PubKey()))
	require.Len(t, env.EventsOfType(events.EventTokenTransfer), 1)
}

func TestTransferErrors(t *testing.T) {
	env := testutil.NewEnv(t, 0)
	alice := env.NewWallet(t, 100)
	bob := env.NewWallet(t, 0)

	err := env.Run(t, alice, core.TxTransfer, core.TransferPayload{To: bob.PubKey(), Amount: 101}, t0)
	require.Error(t, err)

	err = env.Run(t, alice, core.TxTransfer, core.TransferPayload{To: bob.PubKey(), Amount: 0}, t0+1)
	require.Error(t, err)

	// the treasury is funded via deposit, never by direct transfer
	err = env.Run(t, alice, core.TxTransfer, core.TransferPayload{To: core.TreasuryAddress, Amount: 10}, t0+2)
	require.Error(t, err)
}

func TestDepositByAnyone(t *testing.T) {
	env := testutil.NewEnv(t, 1000)
	sponsor := env.NewWallet(t, 500)

	env.MustRun(t, sponsor, core.TxDeposit, core.DepositPayload{Amount: 400}, t0)

	require.EqualValues(t, 100, env.Balance(t, sponsor.PubKey()))
	require.EqualValues(t, 1400, env.Balance(t, core.TreasuryAddress))
	require.Len(t, env.EventsOfType(events.EventTreasuryDeposit), 1)

	err := env.Run(t, sponsor, core.TxDeposit, core.DepositPayload{Amount: 101}, t0+1)
	require.Error(t, err)
}

func TestWithdrawOwnerOnly(t *testing.T) {
	env := testutil.NewEnv(t, 1000)
	stranger := env.NewWallet(t, 0)

	err := env.Run(t, stranger, core.TxWithdraw, core.WithdrawPayload{Amount: 10}, t0)
	require.ErrorIs(t, err, core.ErrUnauthorized)

	env.MustRun(t, env.Owner, core.TxWithdraw, core.WithdrawPayload{Amount: 600}, t0+1)
	require.EqualValues(t, 400, env.Balance(t, core.TreasuryAddress))
	require.EqualValues(t, 600, env.Balance(t, env.Owner.PubKey()))
	require.Len(t, env.EventsOfType(events.EventTreasuryWithdrawal), 1)
}

func TestWithdrawReserveFloor(t *testing.T) {
	env := testutil.NewEnv(t, 1000)
	env.Params.ReserveFloor = 800
	require.NoError(t, env.State.SetParams(env.Params))

	err := env.Run(t, env.Owner, core.TxWithdraw, core.WithdrawPayload{Amount: 201}, t0)
	require.ErrorIs(t, err, core.ErrInsufficientReserve)
	require.EqualValues(t, 1000, env.Balance(t, core.TreasuryAddress))

	// exactly down to the floor is allowed
	env.MustRun(t, env.Owner, core.TxWithdraw, core.WithdrawPayload{Amount: 200}, t0+1)
	require.EqualValues(t, 800, env.Balance(t, core.TreasuryAddress))
}

func TestWithdrawMoreThanBalance(t *testing.T) {
	env := testutil.NewEnv(t, 100)
	err := env.Run(t, env.Owner, core.TxWithdraw, core.WithdrawPayload{Amount: 101}, t0)
	require.ErrorIs(t, err, core.ErrInsufficientTreasury)
}

// TestFeesFlowToTreasury checks that transaction fees top up the reward pool.
func TestFeesFlowToTreasury(t *testing.T) {
	env := testutil.NewEnv(t, 0)
	alice := env.NewWallet(t, 1000)
	bob := env.NewWallet(t, 0)

	acc, err := env.State.GetAccount(alice.PubKey())
	require.NoError(t, err)
	tx, err := alice.Transfer(testutil.ChainID, bob.PubKey(), 300, acc.Nonce, 25)
	require.NoError(t, err)

	block := core.NewBlock(1, "", alice.PubKey(), []*core.Transaction{tx})
	require.NoError(t, env.Exec.ExecuteTx(block, tx))

	require.EqualValues(t, 675, env.Balance(t, alice.PubKey()))
	require.EqualValues(t, 300, env.Balance(t, bob.PubKey()))
	require.EqualValues(t, 25, env.Balance(t, core.TreasuryAddress))
}
