package indexer_test

import (
	"reflect"
	"testing"

	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/indexer"
	"github.com/picwords/picchain/internal/testutil"
)

func TestIndexerTracksRounds(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{
		Type: events.EventGameStarted,
		Data: map[string]any{"player": "alice", "game_id": uint64(1)},
	})
	emitter.Emit(events.Event{
		Type: events.EventGameStarted,
		Data: map[string]any{"player": "alice", "game_id": uint64(2)},
	})
	emitter.Emit(events.Event{
		Type: events.EventGameWon,
		Data: map[string]any{"player": "alice", "game_id": uint64(2)},
	})
	emitter.Emit(events.Event{
		Type: events.EventGameStarted,
		Data: map[string]any{"player": "bob", "game_id": uint64(3)},
	})

	games, err := idx.GetGamesByPlayer("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(games, []uint64{1, 2}) {
		t.Errorf("alice games = %v", games)
	}

	wins, err := idx.GetWinsByPlayer("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(wins, []uint64{2}) {
		t.Errorf("alice wins = %v", wins)
	}

	games, err = idx.GetGamesByPlayer("bob")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(games, []uint64{3}) {
		t.Errorf("bob games = %v", games)
	}

	// unknown player reads as empty, not as an error
	none, err := idx.GetWinsByPlayer("carol")
	if err != nil || len(none) != 0 {
		t.Errorf("carol wins = %v, %v", none, err)
	}
}

func TestIndexerBadgeLog(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	for _, badge := range []string{"FirstWin", "TenWins"} {
		emitter.Emit(events.Event{
			Type: events.EventAchievement,
			Data: map[string]any{"player": "alice", "achievement": badge},
		})
	}
	// malformed payloads are ignored
	emitter.Emit(events.Event{Type: events.EventAchievement, Data: map[string]any{"player": "alice"}})

	badges, err := idx.GetBadgeLog("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(badges, []string{"FirstWin", "TenWins"}) {
		t.Errorf("badge log = %v", badges)
	}
}
