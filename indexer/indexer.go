// Package indexer maintains secondary indexes over committed blocks so
// off-chain clients can query a player's round history without scanning
// full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/storage"
)

const (
	prefixPlayerGames  = "idx:player:game:"
	prefixPlayerWins   = "idx:player:win:"
	prefixPlayerBadges = "idx:player:badge:"
)

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventGameStarted, idx.onGameStarted)
	emitter.Subscribe(events.EventGameWon, idx.onGameWon)
	emitter.Subscribe(events.EventAchievement, idx.onAchievement)
	return idx
}

// GetGamesByPlayer returns every round id the player has started, oldest first.
func (idx *Indexer) GetGamesByPlayer(player string) ([]uint64, error) {
	return idx.getIDList(prefixPlayerGames + player)
}

// GetWinsByPlayer returns every round id the player has won, oldest first.
func (idx *Indexer) GetWinsByPlayer(player string) ([]uint64, error) {
	return idx.getIDList(prefixPlayerWins + player)
}

// GetBadgeLog returns the player's achievement unlocks in the order they
// happened.
func (idx *Indexer) GetBadgeLog(player string) ([]string, error) {
	return idx.getStringList(prefixPlayerBadges + player)
}

// ---- event handlers ----

func (idx *Indexer) onGameStarted(ev events.Event) {
	player, _ := ev.Data["player"].(string)
	gameID, ok := ev.Data["game_id"].(uint64)
	if player == "" || !ok {
		return
	}
	_ = idx.addID(prefixPlayerGames+player, gameID)
}

func (idx *Indexer) onGameWon(ev events.Event) {
	player, _ := ev.Data["player"].(string)
	gameID, ok := ev.Data["game_id"].(uint64)
	if player == "" || !ok {
		return
	}
	_ = idx.addID(prefixPlayerWins+player, gameID)
}

func (idx *Indexer) onAchievement(ev events.Event) {
	player, _ := ev.Data["player"].(string)
	badge, _ := ev.Data["achievement"].(string)
	if player == "" || badge == "" {
		return
	}
	_ = idx.addString(prefixPlayerBadges+player, badge)
}

// ---- list helpers ----

func (idx *Indexer) getIDList(key string) ([]uint64, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) getStringList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var vals []string
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return vals, nil
}

func (idx *Indexer) addID(key string, id uint64) error {
	ids, _ := idx.getIDList(key)
	data, err := json.Marshal(append(ids, id))
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) addString(key, value string) error {
	vals, _ := idx.getStringList(key)
	data, err := json.Marshal(append(vals, value))
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
