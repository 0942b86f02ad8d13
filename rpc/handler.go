package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/indexer"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	state   core.State
	indexer *indexer.Indexer
	chainID string // expected chain_id; used to reject cross-chain replay transactions
	now     func() int64
}

// NewHandler creates an RPC Handler.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, state core.State, idx *indexer.Indexer, chainID string) *Handler {
	return &Handler{
		bc:      bc,
		mempool: mempool,
		state:   state,
		indexer: idx,
		chainID: chainID,
		now:     func() int64 { return time.Now().Unix() },
	}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return okResponse(req.ID, h.bc.Height())

	case "getBlock":
		return h.getBlock(req)

	case "getBalance":
		return h.getBalance(req)

	case "sendTx":
		return h.sendTx(req)

	case "getMempoolSize":
		return okResponse(req.ID, h.mempool.Size())

	case "getCurrentGame":
		return h.getCurrentGame(req)

	case "getPlayerGame":
		return h.getPlayerGame(req)

	case "getPlayerStats":
		return h.getPlayerStats(req)

	case "getPlayerScore":
		return h.getPlayerScore(req)

	case "getTopPlayers":
		return h.getTopPlayers(req)

	case "getFriendLeaderboard":
		return h.getFriendLeaderboard(req)

	case "getPlayerAchievements":
		return h.getPlayerAchievements(req)

	case "getFriends":
		return h.getFriends(req)

	case "areFriends":
		return h.areFriends(req)

	case "hasBoughtHint":
		return h.hasBoughtHint(req)

	case "getTemplate":
		return h.getTemplate(req)

	case "getActiveTemplateCount":
		return h.getActiveTemplateCount(req)

	case "getTreasuryBalance":
		return h.getTreasuryBalance(req)

	case "getEngineParams":
		return h.getEngineParams(req)

	case "calculateAnswerHash":
		return h.calculateAnswerHash(req)

	case "getGamesByPlayer":
		return h.getGamesByPlayer(req)

	case "getWinsByPlayer":
		return h.getWinsByPlayer(req)

	case "getBadgeLog":
		return h.getBadgeLog(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// ---- host chain methods ----

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}

	var block *core.Block
	var err error
	if params.Hash != "" {
		block, err = h.bc.GetBlock(params.Hash)
	} else if params.Height != nil {
		block, err = h.bc.GetBlockByHeight(*params.Height)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if block == nil {
		return errResponse(req.ID, CodeInternalError, "no block found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getBalance(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	acc, err := h.state.GetAccount(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"address": params.Address, "balance": acc.Balance, "nonce": acc.Nonce})
}

func (h *Handler) sendTx(req Request) Response {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Reject transactions destined for a different network to prevent
	// cross-chain replay attacks.
	if tx.ChainID != h.chainID {
		return errResponse(req.ID, CodeInvalidParams,
			fmt.Sprintf("chain ID mismatch: got %q want %q", tx.ChainID, h.chainID))
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	if err := h.mempool.Add(&tx); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}

// ---- game engine methods ----

// GameView is the read-side projection of a player's round. TimeRemaining is
// computed against the wall clock at query time; an expired or absent round
// yields the zero view.
type GameView struct {
	GameID        uint64          `json:"game_id"`
	TemplateID    uint64          `json:"template_id"`
	StartTime     int64           `json:"start_time"`
	EndTime       int64           `json:"end_time"`
	Reward        uint64          `json:"reward"`
	Difficulty    core.Difficulty `json:"difficulty"`
	HintCost      uint64          `json:"hint_cost"`
	Active        bool            `json:"active"`
	Won           bool            `json:"won"`
	HintBought    bool            `json:"hint_bought"`
	Submissions   uint64          `json:"submissions"`
	TimeRemaining int64           `json:"time_remaining"`
}

func playerParam(req Request) (string, *Response) {
	var params struct {
		Player string `json:"player"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, err.Error())
		return "", &resp
	}
	if params.Player == "" {
		resp := errResponse(req.ID, CodeInvalidParams, "player is required")
		return "", &resp
	}
	return params.Player, nil
}

// getCurrentGame returns the player's running round, or the zero view when
// there is none, the round was resolved, or its timer has already run out.
func (h *Handler) getCurrentGame(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	g, err := h.state.GetGame(player)
	if errors.Is(err, core.ErrNotFound) {
		return okResponse(req.ID, GameView{})
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	now := h.now()
	if !g.Active || core.IsExpired(g, now) {
		return okResponse(req.ID, GameView{})
	}
	return okResponse(req.ID, GameView{
		GameID:        g.GameID,
		TemplateID:    g.TemplateID,
		StartTime:     g.StartTime,
		EndTime:       g.EndTime,
		Reward:        g.Reward,
		Difficulty:    g.Difficulty,
		HintCost:      g.HintCost,
		Active:        true,
		Won:           g.Won,
		HintBought:    g.HintBought,
		Submissions:   g.Submissions,
		TimeRemaining: g.EndTime - now,
	})
}

// getPlayerGame returns the raw round slot as stored, resolved rounds
// included. The answer commitment is never exposed.
func (h *Handler) getPlayerGame(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	g, err := h.state.GetGame(player)
	if errors.Is(err, core.ErrNotFound) {
		return okResponse(req.ID, GameView{})
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, GameView{
		GameID:      g.GameID,
		TemplateID:  g.TemplateID,
		StartTime:   g.StartTime,
		EndTime:     g.EndTime,
		Reward:      g.Reward,
		Difficulty:  g.Difficulty,
		HintCost:    g.HintCost,
		Active:      g.Active,
		Won:         g.Won,
		HintBought:  g.HintBought,
		Submissions: g.Submissions,
	})
}

func (h *Handler) getPlayerStats(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	stats, err := h.state.GetStats(player)
	if errors.Is(err, core.ErrNotFound) {
		return okResponse(req.ID, &core.PlayerStats{})
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, stats)
}

func (h *Handler) getPlayerScore(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	stats, err := h.state.GetStats(player)
	if errors.Is(err, core.ErrNotFound) {
		return okResponse(req.ID, uint64(0))
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, core.Score(stats))
}

// getTopPlayers ranks every known player by score. The ranking is derived on
// read; nothing is persisted.
func (h *Handler) getTopPlayers(req Request) Response {
	var params struct {
		Limit int `json:"limit"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errResponse(req.ID, CodeInvalidParams, err.Error())
		}
	}

	players, err := h.state.Players()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	entries, err := h.scoreEntries(players)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	core.RankPlayers(entries)
	if params.Limit > 0 && params.Limit < len(entries) {
		entries = entries[:params.Limit]
	}
	return okResponse(req.ID, entries)
}

// getFriendLeaderboard ranks the player's friends plus the player themselves.
func (h *Handler) getFriendLeaderboard(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	friends, err := h.state.GetFriends(player)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	entries, err := h.scoreEntries(append(friends, player))
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	for i := range entries {
		entries[i].IsFriend = entries[i].Player != player
	}
	core.RankPlayers(entries)
	return okResponse(req.ID, entries)
}

func (h *Handler) scoreEntries(players []string) ([]core.LeaderboardEntry, error) {
	entries := make([]core.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		stats, err := h.state.GetStats(p)
		if errors.Is(err, core.ErrNotFound) {
			stats = &core.PlayerStats{}
		} else if err != nil {
			return nil, err
		}
		entries = append(entries, core.LeaderboardEntry{Player: p, Score: core.Score(stats)})
	}
	return entries, nil
}

func (h *Handler) getPlayerAchievements(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	a, err := h.state.GetAchievements(player)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	out := make(map[string]bool, core.NumAchievements)
	for k := core.AchievementKind(0); k < core.NumAchievements; k++ {
		out[k.String()] = a[k]
	}
	return okResponse(req.ID, out)
}

func (h *Handler) getFriends(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	friends, err := h.state.GetFriends(player)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if friends == nil {
		friends = []string{}
	}
	return okResponse(req.ID, friends)
}

// areFriends reports the mutual relation: both directed flags must be set.
func (h *Handler) areFriends(req Request) Response {
	var params struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.A == "" || params.B == "" {
		return errResponse(req.ID, CodeInvalidParams, "a and b are required")
	}
	ab, err := h.state.FriendFlag(params.A, params.B)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	ba, err := h.state.FriendFlag(params.B, params.A)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, ab && ba)
}

func (h *Handler) hasBoughtHint(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	g, err := h.state.GetGame(player)
	if errors.Is(err, core.ErrNotFound) {
		return okResponse(req.ID, false)
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, g.HintBought)
}

func (h *Handler) getTemplate(req Request) Response {
	var params struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	t, err := h.state.GetTemplate(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, t)
}

func (h *Handler) getActiveTemplateCount(req Request) Response {
	ids, err := h.state.TemplateIDs()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	count := 0
	for _, id := range ids {
		t, err := h.state.GetTemplate(id)
		if err != nil {
			return errResponse(req.ID, CodeInternalError, err.Error())
		}
		if t.Active {
			count++
		}
	}
	return okResponse(req.ID, count)
}

func (h *Handler) getTreasuryBalance(req Request) Response {
	acc, err := h.state.GetAccount(core.TreasuryAddress)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, acc.Balance)
}

func (h *Handler) getEngineParams(req Request) Response {
	params, err := h.state.GetParams()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, params)
}

// calculateAnswerHash is a convenience for template authors: it returns the
// commitment the chain expects for a raw answer.
func (h *Handler) calculateAnswerHash(req Request) Response {
	var params struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if core.NormalizeAnswer(params.Answer) == "" {
		return errResponse(req.ID, CodeInvalidParams, "answer is required")
	}
	return okResponse(req.ID, core.AnswerHash(params.Answer))
}

func (h *Handler) getGamesByPlayer(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	ids, err := h.indexer.GetGamesByPlayer(player)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if ids == nil {
		ids = []uint64{}
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getWinsByPlayer(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	ids, err := h.indexer.GetWinsByPlayer(player)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if ids == nil {
		ids = []uint64{}
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getBadgeLog(req Request) Response {
	player, errResp := playerParam(req)
	if errResp != nil {
		return *errResp
	}
	badges, err := h.indexer.GetBadgeLog(player)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if badges == nil {
		badges = []string{}
	}
	return okResponse(req.ID, badges)
}
