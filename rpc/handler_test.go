package rpc

import (
	"encoding/json"
	"testing"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/indexer"
	"github.com/picwords/picchain/internal/testutil"
	"github.com/picwords/picchain/storage"
	"github.com/picwords/picchain/wallet"
)

func newTestHandler(t *testing.T) (*Handler, *storage.StateDB) {
	t.Helper()
	state := testutil.NewStateDB()
	bc := core.NewBlockchain(testutil.NewMemBlockStore())
	if err := bc.Init(); err != nil {
		t.Fatal(err)
	}
	idx := indexer.New(testutil.NewMemDB(), events.NewEmitter())
	h := NewHandler(bc, core.NewMempool(), state, idx, "test-chain")
	return h, state
}

func call(t *testing.T, h *Handler, method string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

func TestGetTopPlayersRanking(t *testing.T) {
	h, state := newTestHandler(t)

	// scores: aa=300, bb=100, cc=100 → aa, bb, cc (tie broken by address)
	for _, p := range []struct {
		addr string
		wins uint64
	}{{"cc", 1}, {"aa", 3}, {"bb", 1}} {
		_ = state.AddPlayer(p.addr)
		_ = state.SetStats(p.addr, &core.PlayerStats{CorrectAnswers: p.wins})
	}

	resp := call(t, h, "getTopPlayers", map[string]int{"limit": 2})
	if resp.Error != nil {
		t.Fatalf("getTopPlayers: %v", resp.Error)
	}
	entries := resp.Result.([]core.LeaderboardEntry)
	if len(entries) != 2 {
		t.Fatalf("limit ignored: got %d entries", len(entries))
	}
	if entries[0].Player != "aa" || entries[1].Player != "bb" {
		t.Errorf("ranking order: got %v", entries)
	}
}

func TestFriendLeaderboard(t *testing.T) {
	h, state := newTestHandler(t)

	_ = state.SetFriends("alice", []string{"bob"})
	_ = state.SetStats("alice", &core.PlayerStats{CorrectAnswers: 1})
	_ = state.SetStats("bob", &core.PlayerStats{CorrectAnswers: 2})
	_ = state.SetStats("carol", &core.PlayerStats{CorrectAnswers: 9}) // not a friend

	resp := call(t, h, "getFriendLeaderboard", map[string]string{"player": "alice"})
	if resp.Error != nil {
		t.Fatalf("getFriendLeaderboard: %v", resp.Error)
	}
	entries := resp.Result.([]core.LeaderboardEntry)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want friends plus self", len(entries))
	}
	if entries[0].Player != "bob" || !entries[0].IsFriend {
		t.Errorf("first entry: %+v", entries[0])
	}
	if entries[1].Player != "alice" || entries[1].IsFriend {
		t.Errorf("self entry must not be flagged as friend: %+v", entries[1])
	}
}

func TestGetCurrentGameViews(t *testing.T) {
	h, state := newTestHandler(t)
	h.now = func() int64 { return 2000 }

	// no game on record → zero view
	resp := call(t, h, "getCurrentGame", map[string]string{"player": "alice"})
	if resp.Error != nil {
		t.Fatal(resp.Error)
	}
	if v := resp.Result.(GameView); v.Active || v.GameID != 0 {
		t.Errorf("expected zero view, got %+v", v)
	}

	// running round → populated view with remaining time
	_ = state.SetGame("alice", &core.PlayerGame{
		GameID: 5, StartTime: 1000, EndTime: 2500, Reward: 10, Active: true,
	})
	resp = call(t, h, "getCurrentGame", map[string]string{"player": "alice"})
	v := resp.Result.(GameView)
	if !v.Active || v.GameID != 5 || v.TimeRemaining != 500 {
		t.Errorf("running view: %+v", v)
	}

	// expired round → zero view even though the slot still says active
	h.now = func() int64 { return 3000 }
	resp = call(t, h, "getCurrentGame", map[string]string{"player": "alice"})
	if v := resp.Result.(GameView); v.Active || v.GameID != 0 {
		t.Errorf("expired round must yield the zero view, got %+v", v)
	}
}

func TestGetPlayerGameNoRecord(t *testing.T) {
	h, state := newTestHandler(t)

	// reads never fail on an empty slot, they return the zero view
	resp := call(t, h, "getPlayerGame", map[string]string{"player": "nobody"})
	if resp.Error != nil {
		t.Fatal(resp.Error)
	}
	if v := resp.Result.(GameView); v != (GameView{}) {
		t.Errorf("expected zero view, got %+v", v)
	}

	_ = state.SetGame("alice", &core.PlayerGame{GameID: 7, Won: true, Submissions: 3})
	resp = call(t, h, "getPlayerGame", map[string]string{"player": "alice"})
	v := resp.Result.(GameView)
	if v.GameID != 7 || !v.Won || v.Submissions != 3 {
		t.Errorf("stored round: %+v", v)
	}
}

func TestAreFriendsRequiresBothFlags(t *testing.T) {
	h, state := newTestHandler(t)

	_ = state.SetFriendFlag("a", "b", true)
	resp := call(t, h, "areFriends", map[string]string{"a": "a", "b": "b"})
	if resp.Result.(bool) {
		t.Error("one directed flag must not count as friends")
	}

	_ = state.SetFriendFlag("b", "a", true)
	resp = call(t, h, "areFriends", map[string]string{"a": "a", "b": "b"})
	if !resp.Result.(bool) {
		t.Error("mutual flags should count as friends")
	}
}

func TestGetPlayerStatsDefault(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := call(t, h, "getPlayerStats", map[string]string{"player": "nobody"})
	if resp.Error != nil {
		t.Fatal(resp.Error)
	}
	stats := resp.Result.(*core.PlayerStats)
	if stats.GamesPlayed != 0 || stats.CorrectAnswers != 0 {
		t.Errorf("unknown player stats should be zero: %+v", stats)
	}

	resp = call(t, h, "getPlayerScore", map[string]string{"player": "nobody"})
	if resp.Result.(uint64) != 0 {
		t.Error("unknown player score should be zero")
	}
}

func TestCalculateAnswerHash(t *testing.T) {
	h, _ := newTestHandler(t)
	a := call(t, h, "calculateAnswerHash", map[string]string{"answer": "TEST"})
	b := call(t, h, "calculateAnswerHash", map[string]string{"answer": " test "})
	if a.Result.(string) != b.Result.(string) {
		t.Error("normalized answers must hash identically")
	}

	resp := call(t, h, "calculateAnswerHash", map[string]string{"answer": "  "})
	if resp.Error == nil {
		t.Error("blank answer must be rejected")
	}
}

func TestSendTxChainIDMismatch(t *testing.T) {
	h, _ := newTestHandler(t)
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := w.SubmitGuess("other-chain", "cat", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(tx)
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "sendTx", Params: raw})
	if resp.Error == nil {
		t.Error("cross-chain tx must be rejected")
	}

	tx, err = w.SubmitGuess("test-chain", "cat", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ = json.Marshal(tx)
	resp = h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "sendTx", Params: raw})
	if resp.Error != nil {
		t.Errorf("matching chain id rejected: %v", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := call(t, h, "noSuchMethod", nil)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Errorf("unknown method: %+v", resp.Error)
	}
}
