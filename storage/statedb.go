package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it. All prefix constants must be declared
// via this function; manually editing statePrefixes is not required.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
// ComputeRoot() iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixAccount      = registerPrefix("acct:")
	prefixTemplate     = registerPrefix("tmpl:")
	prefixGame         = registerPrefix("game:")
	prefixStats        = registerPrefix("stat:")
	prefixAchievements = registerPrefix("achv:")
	prefixFriendList   = registerPrefix("flist:")
	prefixFriendFlag   = registerPrefix("frnd:")
	prefixMeta         = registerPrefix("meta:")
)

// Singleton meta keys. They share the meta: prefix so the state root
// covers engine parameters, sequences and the player index.
const (
	keyParams      = "meta:params"
	keyPlayers     = "meta:players"
	keyTemplateIDs = "meta:templates"
	keyTemplateSeq = "meta:tmpl_seq"
	keyGameSeq     = "meta:game_seq"
)

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with an in-memory write
// buffer, snapshot/rollback, and deterministic state-root computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	delete(s.dirty, key)
	s.deleted[key] = true
}

func (s *StateDB) getJSON(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// nextSeq increments and returns the counter stored under key, starting at 1.
func (s *StateDB) nextSeq(key string) (uint64, error) {
	var seq uint64
	if err := s.getJSON(key, &seq); err != nil && !errors.Is(err, core.ErrNotFound) {
		return 0, err
	}
	seq++
	if err := s.setJSON(key, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// ---- Accounts ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	var acc core.Account
	err := s.getJSON(prefixAccount+address, &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.setJSON(prefixAccount+acc.Address, acc)
}

// ---- Game templates ----

func templateKey(id uint64) string {
	return prefixTemplate + strconv.FormatUint(id, 10)
}

func (s *StateDB) GetTemplate(id uint64) (*core.GameTemplate, error) {
	var t core.GameTemplate
	if err := s.getJSON(templateKey(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *StateDB) SetTemplate(t *core.GameTemplate) error {
	return s.setJSON(templateKey(t.ID), t)
}

func (s *StateDB) TemplateIDs() ([]uint64, error) {
	var ids []uint64
	if err := s.getJSON(keyTemplateIDs, &ids); err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	return ids, nil
}

func (s *StateDB) SetTemplateIDs(ids []uint64) error {
	return s.setJSON(keyTemplateIDs, ids)
}

func (s *StateDB) NextTemplateID() (uint64, error) {
	return s.nextSeq(keyTemplateSeq)
}

// ---- Player rounds ----

func (s *StateDB) GetGame(player string) (*core.PlayerGame, error) {
	var g core.PlayerGame
	if err := s.getJSON(prefixGame+player, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *StateDB) SetGame(player string, g *core.PlayerGame) error {
	return s.setJSON(prefixGame+player, g)
}

func (s *StateDB) NextGameID() (uint64, error) {
	return s.nextSeq(keyGameSeq)
}

// ---- Stats and achievements ----

func (s *StateDB) GetStats(player string) (*core.PlayerStats, error) {
	var st core.PlayerStats
	if err := s.getJSON(prefixStats+player, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *StateDB) SetStats(player string, st *core.PlayerStats) error {
	return s.setJSON(prefixStats+player, st)
}

func (s *StateDB) GetAchievements(player string) (core.Achievements, error) {
	var a core.Achievements
	err := s.getJSON(prefixAchievements+player, &a)
	if errors.Is(err, core.ErrNotFound) {
		return core.Achievements{}, nil
	}
	return a, err
}

func (s *StateDB) SetAchievements(player string, a core.Achievements) error {
	return s.setJSON(prefixAchievements+player, a)
}

// ---- Player index ----

func (s *StateDB) Players() ([]string, error) {
	var players []string
	if err := s.getJSON(keyPlayers, &players); err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	return players, nil
}

func (s *StateDB) AddPlayer(address string) error {
	players, err := s.Players()
	if err != nil {
		return err
	}
	players = append(players, address)
	return s.setJSON(keyPlayers, players)
}

// ---- Social graph ----

func (s *StateDB) GetFriends(player string) ([]string, error) {
	var friends []string
	if err := s.getJSON(prefixFriendList+player, &friends); err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	return friends, nil
}

func (s *StateDB) SetFriends(player string, friends []string) error {
	return s.setJSON(prefixFriendList+player, friends)
}

func friendFlagKey(from, to string) string {
	return prefixFriendFlag + from + ":" + to
}

func (s *StateDB) FriendFlag(from, to string) (bool, error) {
	_, err := s.get(friendFlagKey(from, to))
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *StateDB) SetFriendFlag(from, to string, v bool) error {
	if v {
		s.set(friendFlagKey(from, to), []byte{1})
	} else {
		s.del(friendFlagKey(from, to))
	}
	return nil
}

// ---- Engine parameters ----

func (s *StateDB) GetParams() (*core.EngineParams, error) {
	var p core.EngineParams
	if err := s.getJSON(keyParams, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *StateDB) SetParams(p *core.EngineParams) error {
	return s.setJSON(keyParams, p)
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so that subsequent writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding. It does NOT flush or modify state,
// so it is safe to call before signing a block.
func (s *StateDB) ComputeRoot() string {
	// Step 1: collect all persisted state entries from DB.
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	// Step 2: apply the in-memory write buffer (uncommitted changes this block).
	for k, v := range s.dirty {
		merged[k] = v
	}

	// Step 3: exclude deleted keys.
	for k := range s.deleted {
		delete(merged, k)
	}

	// Step 4: sort keys for determinism.
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Step 5: length-prefix encode each key-value pair and hash.
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// Batch and then clears it. Call ComputeRoot() before signing the block,
// then call Commit() after the block is safely stored.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
