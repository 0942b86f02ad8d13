package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/crypto"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/vm"
)

func init() {
	vm.Register(core.TxNewGame, handleNewGame)
	vm.Register(core.TxSubmitGuess, handleSubmitGuess)
	vm.Register(core.TxBuyHint, handleBuyHint)
}

func handleNewGame(ctx *vm.Context, payload json.RawMessage) error {
	params, err := ctx.State.GetParams()
	if err != nil {
		return fmt.Errorf("engine params: %w", err)
	}

	g, err := ctx.State.GetGame(ctx.Tx.From)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// first round for this player
	case err != nil:
		return err
	case g.Active && !core.IsExpired(g, ctx.Now()):
		return core.ErrGameStillActive
	case g.Active:
		// timer ran out unobserved; settle it before starting over
		if err := finalizeExpired(ctx, params, g); err != nil {
			return err
		}
	}

	_, err = startRound(ctx, params)
	return err
}

func handleSubmitGuess(ctx *vm.Context, payload json.RawMessage) error {
	var p core.SubmitGuessPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode submit_guess payload: %w", err)
	}
	guess := core.NormalizeAnswer(p.Guess)
	if guess == "" {
		return core.ErrEmptyGuess
	}

	params, err := ctx.State.GetParams()
	if err != nil {
		return fmt.Errorf("engine params: %w", err)
	}

	g, err := ctx.State.GetGame(ctx.Tx.From)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// no round on record: this guess starts one and counts against it
		if g, err = startRound(ctx, params); err != nil {
			return err
		}
	case err != nil:
		return err
	case g.Active && core.IsExpired(g, ctx.Now()):
		if err := finalizeExpired(ctx, params, g); err != nil {
			return err
		}
		if g, err = startRound(ctx, params); err != nil {
			return err
		}
	case !g.Active && g.Won:
		// a won round stays closed until the player explicitly starts a new one
		return core.ErrGameCompleted
	case !g.Active:
		if g, err = startRound(ctx, params); err != nil {
			return err
		}
	}

	g.Submissions++
	correct := crypto.Hash([]byte(guess)) == g.AnswerHash

	if !correct {
		if err := ctx.State.SetGame(ctx.Tx.From, g); err != nil {
			return err
		}
		ctx.Emit(events.Event{
			Type: events.EventGuessSubmitted,
			Data: map[string]any{
				"player":      ctx.Tx.From,
				"game_id":     g.GameID,
				"correct":     false,
				"submissions": g.Submissions,
			},
		})
		return nil
	}

	// The payout comes from the live treasury balance, not the balance seen
	// at round start, so a drained treasury fails the win instead of minting.
	treasury, err := ctx.State.GetAccount(core.TreasuryAddress)
	if err != nil {
		return err
	}
	if treasury.Balance < g.Reward {
		return fmt.Errorf("%w: have %d, reward %d", core.ErrInsufficientTreasury, treasury.Balance, g.Reward)
	}
	treasury.Balance -= g.Reward
	if err := ctx.State.SetAccount(treasury); err != nil {
		return err
	}
	winner, err := ctx.State.GetAccount(ctx.Tx.From)
	if err != nil {
		return err
	}
	winner.Balance += g.Reward
	if err := ctx.State.SetAccount(winner); err != nil {
		return err
	}

	g.Active = false
	g.Won = true
	if err := ctx.State.SetGame(ctx.Tx.From, g); err != nil {
		return err
	}

	stats, err := loadStats(ctx, ctx.Tx.From)
	if err != nil {
		return err
	}
	stats.GamesPlayed++
	stats.CorrectAnswers++
	stats.RewardsEarned += g.Reward
	stats.CurrentStreak++
	if stats.CurrentStreak > stats.BestStreak {
		stats.BestStreak = stats.CurrentStreak
	}
	stats.LastPlayed = ctx.Now()
	if err := saveStats(ctx, ctx.Tx.From, stats); err != nil {
		return err
	}
	if err := vm.RefreshAchievements(ctx, params, ctx.Tx.From, stats); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventGameWon,
		Data: map[string]any{
			"player":      ctx.Tx.From,
			"game_id":     g.GameID,
			"reward":      g.Reward,
			"submissions": g.Submissions,
		},
	})
	return nil
}

func handleBuyHint(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BuyHintPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode buy_hint payload: %w", err)
	}

	params, err := ctx.State.GetParams()
	if err != nil {
		return fmt.Errorf("engine params: %w", err)
	}

	g, err := ctx.State.GetGame(ctx.Tx.From)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNoActiveGame
	}
	if err != nil {
		return err
	}
	if !g.Active || core.IsExpired(g, ctx.Now()) {
		return core.ErrNoActiveGame
	}
	if g.HintBought {
		return core.ErrHintPurchased
	}
	if p.Payment < g.HintCost {
		return fmt.Errorf("%w: paid %d, hint costs %d", core.ErrInsufficientPayment, p.Payment, g.HintCost)
	}

	buyer, err := ctx.State.GetAccount(ctx.Tx.From)
	if err != nil {
		return err
	}
	if buyer.Balance < p.Payment {
		return fmt.Errorf("insufficient balance: have %d, need %d", buyer.Balance, p.Payment)
	}
	// overpayment is kept by the treasury
	buyer.Balance -= p.Payment
	if err := ctx.State.SetAccount(buyer); err != nil {
		return err
	}
	treasury, err := ctx.State.GetAccount(core.TreasuryAddress)
	if err != nil {
		return err
	}
	treasury.Balance += p.Payment
	if err := ctx.State.SetAccount(treasury); err != nil {
		return err
	}

	g.HintBought = true
	if err := ctx.State.SetGame(ctx.Tx.From, g); err != nil {
		return err
	}

	stats, err := loadStats(ctx, ctx.Tx.From)
	if err != nil {
		return err
	}
	stats.HintsBought++
	if err := saveStats(ctx, ctx.Tx.From, stats); err != nil {
		return err
	}
	if err := vm.RefreshAchievements(ctx, params, ctx.Tx.From, stats); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventHintPurchased,
		Data: map[string]any{
			"player":  ctx.Tx.From,
			"game_id": g.GameID,
			"payment": p.Payment,
		},
	})
	return nil
}

// startRound picks an active template, derives the reward and hint cost, and
// writes a fresh round into the sender's slot. Template choice is pinned to
// the transaction id so every validator selects the same one.
func startRound(ctx *vm.Context, params *core.EngineParams) (*core.PlayerGame, error) {
	ids, err := ctx.State.TemplateIDs()
	if err != nil {
		return nil, err
	}
	var active []*core.GameTemplate
	for _, id := range ids {
		t, err := ctx.State.GetTemplate(id)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", id, err)
		}
		if t.Active {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil, core.ErrNoActiveTemplates
	}

	t := active[pickIndex(ctx.Tx.ID, ctx.Tx.From, len(active))]
	reward := params.Reward(t.BaseReward, t.Difficulty)
	gameID, err := ctx.State.NextGameID()
	if err != nil {
		return nil, err
	}
	now := ctx.Now()
	g := &core.PlayerGame{
		GameID:     gameID,
		TemplateID: t.ID,
		AnswerHash: t.AnswerHash,
		StartTime:  now,
		EndTime:    now + params.RoundDuration,
		Reward:     reward,
		Difficulty: t.Difficulty,
		HintCost:   params.HintCost(reward),
		Active:     true,
	}
	if err := ctx.State.SetGame(ctx.Tx.From, g); err != nil {
		return nil, err
	}

	ctx.Emit(events.Event{
		Type: events.EventGameStarted,
		Data: map[string]any{
			"player":      ctx.Tx.From,
			"game_id":     gameID,
			"template_id": t.ID,
			"reward":      reward,
			"ends_at":     g.EndTime,
		},
	})
	return g, nil
}

// pickIndex maps (txID, player) onto [0, n) deterministically.
func pickIndex(txID, player string, n int) int {
	h := crypto.Hash([]byte(txID + player))
	v, err := strconv.ParseUint(h[:16], 16, 64)
	if err != nil {
		return 0
	}
	return int(v % uint64(n))
}

// finalizeExpired settles a round whose timer ran out without being observed:
// the round closes unwon, the play counts, and the streak breaks.
func finalizeExpired(ctx *vm.Context, params *core.EngineParams, g *core.PlayerGame) error {
	g.Active = false
	if err := ctx.State.SetGame(ctx.Tx.From, g); err != nil {
		return err
	}

	stats, err := loadStats(ctx, ctx.Tx.From)
	if err != nil {
		return err
	}
	stats.GamesPlayed++
	stats.CurrentStreak = 0
	stats.LastPlayed = ctx.Now()
	if err := saveStats(ctx, ctx.Tx.From, stats); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventGameExpired,
		Data: map[string]any{
			"player":  ctx.Tx.From,
			"game_id": g.GameID,
		},
	})
	return nil
}

// loadStats returns the player's stats, or a zero record before the first write.
func loadStats(ctx *vm.Context, player string) (*core.PlayerStats, error) {
	stats, err := ctx.State.GetStats(player)
	if errors.Is(err, core.ErrNotFound) {
		return &core.PlayerStats{}, nil
	}
	return stats, err
}

// saveStats persists stats, registering the player in the leaderboard index
// on the first write.
func saveStats(ctx *vm.Context, player string, stats *core.PlayerStats) error {
	if _, err := ctx.State.GetStats(player); errors.Is(err, core.ErrNotFound) {
		if err := ctx.State.AddPlayer(player); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return ctx.State.SetStats(player, stats)
}
