package game

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/internal/testutil"

	_ "github.com/picwords/picchain/vm/modules/templates"
)

const t0 = int64(1_700_000_000)

func baseReward(env *testutil.Env) uint64 {
	return env.Params.MinReward
}

func TestSubmitGuessAutoStartsRound(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, 0)

	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "wrong"}, t0+10)

	g, err := env.State.GetGame(player.PubKey())
	require.NoError(t, err)
	require.True(t, g.Active)
	require.False(t, g.Won)
	require.EqualValues(t, 1, g.Submissions)
	require.Equal(t, t0+10, g.StartTime)
	require.Equal(t, t0+10+env.Params.RoundDuration, g.EndTime)

	// wrong guesses never touch stats
	_, err = env.State.GetStats(player.PubKey())
	require.ErrorIs(t, err, core.ErrNotFound)

	require.Len(t, env.EventsOfType(events.EventGameStarted), 1)
}

func TestWrongThenCorrectGuess(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, 0)
	treasuryBefore := env.Balance(t, core.TreasuryAddress)

	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "wrong"}, t0+10)
	// normalization: uppercase with whitespace still matches the commitment
	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: " TEST "}, t0+20)

	reward := baseReward(env) // easy multiplier is 1
	require.Equal(t, reward, env.Balance(t, player.PubKey()))
	require.Equal(t, treasuryBefore-reward, env.Balance(t, core.TreasuryAddress))

	g, err := env.State.GetGame(player.PubKey())
	require.NoError(t, err)
	require.False(t, g.Active)
	require.True(t, g.Won)
	require.EqualValues(t, 2, g.Submissions)

	stats, err := env.State.GetStats(player.PubKey())
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.GamesPlayed)
	require.EqualValues(t, 1, stats.CorrectAnswers)
	require.Equal(t, reward, stats.RewardsEarned)
	require.EqualValues(t, 1, stats.CurrentStreak)
	require.EqualValues(t, 1, stats.BestStreak)
	require.Equal(t, t0+20, stats.LastPlayed)

	ach, err := env.State.GetAchievements(player.PubKey())
	require.NoError(t, err)
	require.True(t, ach[core.AchFirstWin])

	players, err := env.State.Players()
	require.NoError(t, err)
	require.Equal(t, []string{player.PubKey()}, players)

	require.Len(t, env.EventsOfType(events.EventGameWon), 1)
}

func TestHardDifficultyTriplesReward(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "volcano", baseReward(env), core.Hard, t0)
	player := env.NewWallet(t, 0)

	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "volcano"}, t0+10)

	require.Equal(t, 3*baseReward(env), env.Balance(t, player.PubKey()))
}

func TestGuessAfterWinNeedsNewGame(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, 0)

	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "test"}, t0+10)

	err := env.Run(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "test"}, t0+20)
	require.ErrorIs(t, err, core.ErrGameCompleted)

	env.MustRun(t, player, core.TxNewGame, core.NewGamePayload{}, t0+30)
	g, err := env.State.GetGame(player.PubKey())
	require.NoError(t, err)
	require.True(t, g.Active)
	require.False(t, g.Won)
	require.EqualValues(t, 0, g.Submissions)

	// second round is playable again
	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "test"}, t0+40)
	stats, err := env.State.GetStats(player.PubKey())
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.CorrectAnswers)
	require.EqualValues(t, 2, stats.CurrentStreak)
}

func TestNewGameWhileRoundActive(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, 0)

	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "wrong"}, t0+10)

	err := env.Run(t, player, core.TxNewGame, core.NewGamePayload{}, t0+20)
	require.ErrorIs(t, err, core.ErrGameStillActive)
}

func TestExpiredRoundBreaksStreak(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, 0)

	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "test"}, t0+10)
	env.MustRun(t, player, core.TxNewGame, core.NewGamePayload{}, t0+20)

	// the round from t0+20 times out unobserved; the next guess settles it
	// and plays against a fresh round
	late := t0 + 20 + env.Params.RoundDuration + 1
	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "wrong"}, late)

	stats, err := env.State.GetStats(player.PubKey())
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.GamesPlayed) // the win and the expiry
	require.EqualValues(t, 0, stats.CurrentStreak)
	require.EqualValues(t, 1, stats.BestStreak)

	g, err := env.State.GetGame(player.PubKey())
	require.NoError(t, err)
	require.True(t, g.Active)
	require.EqualValues(t, 1, g.Submissions)
	require.Equal(t, late, g.StartTime)

	require.Len(t, env.EventsOfType(events.EventGameExpired), 1)
}

func TestEmptyGuessRejected(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, 0)

	err := env.Run(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "   "}, t0+10)
	require.ErrorIs(t, err, core.ErrEmptyGuess)

	// the failed tx must not have started a round
	_, err = env.State.GetGame(player.PubKey())
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestNoActiveTemplates(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	player := env.NewWallet(t, 0)

	err := env.Run(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "test"}, t0)
	require.ErrorIs(t, err, core.ErrNoActiveTemplates)

	id := env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	env.MustRun(t, env.Owner, core.TxDeactivateTemplate, core.DeactivateTemplatePayload{TemplateID: id}, t0+1)

	err = env.Run(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "test"}, t0+2)
	require.ErrorIs(t, err, core.ErrNoActiveTemplates)
}

// TestDrainedTreasuryFailsWin verifies a correct guess cannot pay out more
// than the pool holds, and that the whole transaction rolls back.
func TestDrainedTreasuryFailsWin(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	env.Fund(t, core.TreasuryAddress, baseReward(env)-1)
	player := env.NewWallet(t, 0)

	err := env.Run(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "test"}, t0+10)
	require.ErrorIs(t, err, core.ErrInsufficientTreasury)

	// rollback: no round, no stats, no payout
	_, err = env.State.GetGame(player.PubKey())
	require.ErrorIs(t, err, core.ErrNotFound)
	require.EqualValues(t, 0, env.Balance(t, player.PubKey()))

	// the auto-start emitted nothing either, so history stays consistent
	require.Empty(t, env.EventsOfType(events.EventGameStarted))
	require.Empty(t, env.EventsOfType(events.EventGuessSubmitted))
}

func TestBuyHint(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, baseReward(env))

	// no round yet
	err := env.Run(t, player, core.TxBuyHint, core.BuyHintPayload{Payment: 1}, t0)
	require.ErrorIs(t, err, core.ErrNoActiveGame)

	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "wrong"}, t0+10)
	g, err := env.State.GetGame(player.PubKey())
	require.NoError(t, err)
	hintCost := g.HintCost
	require.Equal(t, env.Params.HintCost(g.Reward), hintCost)

	// underpayment
	err = env.Run(t, player, core.TxBuyHint, core.BuyHintPayload{Payment: hintCost - 1}, t0+20)
	require.ErrorIs(t, err, core.ErrInsufficientPayment)

	treasuryBefore := env.Balance(t, core.TreasuryAddress)
	playerBefore := env.Balance(t, player.PubKey())
	env.MustRun(t, player, core.TxBuyHint, core.BuyHintPayload{Payment: hintCost}, t0+30)

	require.Equal(t, playerBefore-hintCost, env.Balance(t, player.PubKey()))
	require.Equal(t, treasuryBefore+hintCost, env.Balance(t, core.TreasuryAddress))

	g, err = env.State.GetGame(player.PubKey())
	require.NoError(t, err)
	require.True(t, g.HintBought)

	stats, err := env.State.GetStats(player.PubKey())
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.HintsBought)

	// buy-once per round
	err = env.Run(t, player, core.TxBuyHint, core.BuyHintPayload{Payment: hintCost}, t0+40)
	require.ErrorIs(t, err, core.ErrHintPurchased)
}

func TestBuyHintOverpaymentKept(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, baseReward(env))

	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "wrong"}, t0+10)
	g, err := env.State.GetGame(player.PubKey())
	require.NoError(t, err)

	payment := g.HintCost + 500
	treasuryBefore := env.Balance(t, core.TreasuryAddress)
	env.MustRun(t, player, core.TxBuyHint, core.BuyHintPayload{Payment: payment}, t0+20)
	require.Equal(t, treasuryBefore+payment, env.Balance(t, core.TreasuryAddress))
}

func TestBuyHintOnExpiredRound(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, baseReward(env))

	env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "wrong"}, t0+10)

	late := t0 + 10 + env.Params.RoundDuration + 1
	err := env.Run(t, player, core.TxBuyHint, core.BuyHintPayload{Payment: 1 << 60}, late)
	require.ErrorIs(t, err, core.ErrNoActiveGame)
}

// TestTenWinsUnlocksBadge plays ten rounds and checks the cumulative badges.
func TestTenWinsUnlocksBadge(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, 0)

	at := t0
	for i := 0; i < 10; i++ {
		at += 10
		env.MustRun(t, player, core.TxSubmitGuess, core.SubmitGuessPayload{Guess: "test"}, at)
		at += 10
		if i < 9 {
			env.MustRun(t, player, core.TxNewGame, core.NewGamePayload{}, at)
		}
	}

	stats, err := env.State.GetStats(player.PubKey())
	require.NoError(t, err)
	require.EqualValues(t, 10, stats.CorrectAnswers)
	require.EqualValues(t, 10, stats.CurrentStreak)

	ach, err := env.State.GetAchievements(player.PubKey())
	require.NoError(t, err)
	require.True(t, ach[core.AchFirstWin])
	require.True(t, ach[core.AchTenWins])
	require.True(t, ach[core.AchPerfectStreak])
	require.False(t, ach[core.AchFiftyWins])

	var names []string
	for _, ev := range env.EventsOfType(events.EventAchievement) {
		names = append(names, ev.Data["achievement"].(string))
	}
	require.Contains(t, names, "FirstWin")
	require.Contains(t, names, "TenWins")
	require.Contains(t, names, "PerfectStreak")
}

func TestNonceReplayRejected(t *testing.T) {
	env := testutil.NewEnv(t, 1_000_000_000_000_000_000)
	env.AddTemplate(t, "test", baseReward(env), core.Easy, t0)
	player := env.NewWallet(t, 0)

	acc, err := env.State.GetAccount(player.PubKey())
	require.NoError(t, err)
	tx, err := player.SubmitGuess(testutil.ChainID, "wrong", acc.Nonce, 0)
	require.NoError(t, err)

	block := core.NewBlock(1, "", player.PubKey(), []*core.Transaction{tx})
	require.NoError(t, env.Exec.ExecuteTx(block, tx))

	// same nonce again
	err = env.Exec.ExecuteTx(block, tx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid nonce")
}
