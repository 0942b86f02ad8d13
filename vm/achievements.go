package vm

import (
	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
)

// RefreshAchievements rederives the player's badge set from stats and friend
// count and emits an event for every newly unlocked badge. Badges are
// monotonic so the set only ever grows.
func RefreshAchievements(ctx *Context, params *core.EngineParams, player string, stats *core.PlayerStats) error {
	cur, err := ctx.State.GetAchievements(player)
	if err != nil {
		return err
	}
	friends, err := ctx.State.GetFriends(player)
	if err != nil {
		return err
	}
	next := core.DeriveAchievements(cur, stats, len(friends), params)
	if next == cur {
		return nil
	}
	if err := ctx.State.SetAchievements(player, next); err != nil {
		return err
	}
	for k := core.AchievementKind(0); k < core.NumAchievements; k++ {
		if next[k] && !cur[k] {
			ctx.Emit(events.Event{
				Type: events.EventAchievement,
				Data: map[string]any{"player": player, "achievement": k.String()},
			})
		}
	}
	return nil
}
