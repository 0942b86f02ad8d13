package social

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/crypto"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/vm"
)

func init() {
	vm.Register(core.TxAddFriend, handleAddFriend)
	vm.Register(core.TxRemoveFriend, handleRemoveFriend)
}

// handleAddFriend appends the target to the sender's friend list and marks
// the pair as friends in both directions. The target's own list is untouched;
// they see the edge through the pair flags, not through their list.
func handleAddFriend(ctx *vm.Context, payload json.RawMessage) error {
	var p core.AddFriendPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode add_friend payload: %w", err)
	}
	if _, err := crypto.PubKeyFromHex(p.Friend); err != nil {
		return fmt.Errorf("invalid friend address: %w", err)
	}
	if p.Friend == ctx.Tx.From {
		return core.ErrSelfFriend
	}

	flagged, err := ctx.State.FriendFlag(ctx.Tx.From, p.Friend)
	if err != nil {
		return err
	}
	if flagged {
		return core.ErrAlreadyFriends
	}

	params, err := ctx.State.GetParams()
	if err != nil {
		return fmt.Errorf("engine params: %w", err)
	}
	friends, err := ctx.State.GetFriends(ctx.Tx.From)
	if err != nil {
		return err
	}
	if len(friends) >= params.FriendCap {
		return core.ErrFriendLimit
	}

	if err := ctx.State.SetFriends(ctx.Tx.From, append(friends, p.Friend)); err != nil {
		return err
	}
	if err := ctx.State.SetFriendFlag(ctx.Tx.From, p.Friend, true); err != nil {
		return err
	}
	if err := ctx.State.SetFriendFlag(p.Friend, ctx.Tx.From, true); err != nil {
		return err
	}

	stats, err := ctx.State.GetStats(ctx.Tx.From)
	if errors.Is(err, core.ErrNotFound) {
		stats = &core.PlayerStats{}
	} else if err != nil {
		return err
	}
	if err := vm.RefreshAchievements(ctx, params, ctx.Tx.From, stats); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventFriendAdded,
		Data: map[string]any{"player": ctx.Tx.From, "friend": p.Friend},
	})
	return nil
}

// handleRemoveFriend clears the pair flags in both directions and drops the
// target from the sender's list if present. The edge may exist only via the
// flags when the other side created it, so an absent list entry is fine.
func handleRemoveFriend(ctx *vm.Context, payload json.RawMessage) error {
	var p core.RemoveFriendPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode remove_friend payload: %w", err)
	}

	flagged, err := ctx.State.FriendFlag(ctx.Tx.From, p.Friend)
	if err != nil {
		return err
	}
	if !flagged {
		return core.ErrNotFriends
	}

	if err := ctx.State.SetFriendFlag(ctx.Tx.From, p.Friend, false); err != nil {
		return err
	}
	if err := ctx.State.SetFriendFlag(p.Friend, ctx.Tx.From, false); err != nil {
		return err
	}

	friends, err := ctx.State.GetFriends(ctx.Tx.From)
	if err != nil {
		return err
	}
	for i, f := range friends {
		if f == p.Friend {
			friends = append(friends[:i], friends[i+1:]...)
			if err := ctx.State.SetFriends(ctx.Tx.From, friends); err != nil {
				return err
			}
			break
		}
	}

	ctx.Emit(events.Event{
		Type: events.EventFriendRemoved,
		Data: map[string]any{"player": ctx.Tx.From, "friend": p.Friend},
	})
	return nil
}
