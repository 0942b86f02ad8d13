package core

import (
	"sort"
	"strings"

	"github.com/picwords/picchain/crypto"
)

// EngineParams are the construction-time knobs of the game engine. They are
// written to state once at genesis and never mutated afterwards, so every
// validator enforces the same rules and the parameters are covered by the
// state root.
type EngineParams struct {
	Owner           string    `json:"owner"`             // pubkey hex allowed to manage templates and the treasury
	RoundDuration   int64     `json:"round_duration"`    // seconds
	MinReward       uint64    `json:"min_reward"`        // base-reward bounds for new templates
	MaxReward       uint64    `json:"max_reward"`
	Multipliers     [3]uint64 `json:"multipliers"`       // indexed by Difficulty
	HintCostPercent uint64    `json:"hint_cost_percent"` // hint cost as % of the round reward
	FriendCap       int       `json:"friend_cap"`
	ReserveFloor    uint64    `json:"reserve_floor"`    // balance the treasury must retain after an owner withdrawal
	PerfectStreak   uint64    `json:"perfect_streak"`   // wins-in-a-row for the PerfectStreak badge
	HintMaster      uint64    `json:"hint_master"`      // hints bought for the HintMaster badge
	SocialButterfly int       `json:"social_butterfly"` // friends added for the SocialButterfly badge
}

// DefaultEngineParams mirrors the reference deployment: one-hour rounds,
// 0.001–0.1 token reward bounds (in base units), 1×/2×/3× multipliers and
// 10% hint cost. ReserveFloor defaults to zero; production deployments set
// it per their treasury policy.
func DefaultEngineParams() *EngineParams {
	return &EngineParams{
		RoundDuration:   3600,
		MinReward:       1_000_000_000_000_000,   // 0.001
		MaxReward:       100_000_000_000_000_000, // 0.1
		Multipliers:     [3]uint64{1, 2, 3},
		HintCostPercent: 10,
		FriendCap:       100,
		ReserveFloor:    0,
		PerfectStreak:   10,
		HintMaster:      10,
		SocialButterfly: 10,
	}
}

// Reward returns the payout for a template under these parameters.
func (p *EngineParams) Reward(baseReward uint64, d Difficulty) uint64 {
	return baseReward * p.Multipliers[d]
}

// HintCost returns the hint price for a round paying reward.
func (p *EngineParams) HintCost(reward uint64) uint64 {
	return reward * p.HintCostPercent / 100
}

// NormalizeAnswer lowercases the answer and trims surrounding whitespace.
// The same normalization is applied to stored answers and to every guess,
// so "Test", " test " and "test" commit to the same hash.
func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AnswerHash returns the one-way commitment of a raw answer. The raw answer
// is never stored on chain.
func AnswerHash(raw string) string {
	return crypto.Hash([]byte(NormalizeAnswer(raw)))
}

// IsExpired reports whether the round's timer has run out at the given
// instant (unix seconds). Expiry is purely observer-driven: there are no
// timers, every operation checks this at its entry point.
func IsExpired(g *PlayerGame, now int64) bool {
	return now > g.EndTime
}

// Score is the leaderboard ranking function: wins dominate, the running
// streak breaks near-ties between equally winning players.
func Score(s *PlayerStats) uint64 {
	return s.CorrectAnswers*100 + s.CurrentStreak*10
}

// DeriveAchievements recomputes the flag array from the player's current
// stats and friend count. Unlocks are monotonic: flags already set in cur
// survive even when the stat has since dropped below its threshold.
func DeriveAchievements(cur Achievements, s *PlayerStats, friendCount int, p *EngineParams) Achievements {
	out := cur
	if s.CorrectAnswers >= 1 {
		out[AchFirstWin] = true
	}
	if s.CorrectAnswers >= 10 {
		out[AchTenWins] = true
	}
	if s.CorrectAnswers >= 50 {
		out[AchFiftyWins] = true
	}
	if s.CorrectAnswers >= 100 {
		out[AchHundredWins] = true
	}
	if s.CurrentStreak >= p.PerfectStreak {
		out[AchPerfectStreak] = true
	}
	if s.HintsBought >= p.HintMaster {
		out[AchHintMaster] = true
	}
	if friendCount >= p.SocialButterfly {
		out[AchSocialButterfly] = true
	}
	return out
}

// LeaderboardEntry is a derived ranking row; it is never persisted.
type LeaderboardEntry struct {
	Player   string `json:"player"`
	Score    uint64 `json:"score"`
	IsFriend bool   `json:"is_friend,omitempty"`
}

// RankPlayers sorts entries by score descending; ties break by address
// ascending so repeated calls over unchanged state return the same order.
func RankPlayers(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Player < entries[j].Player
	})
}
