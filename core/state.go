package core

// Account holds a participant's native-token balance and replay-protection
// nonce. Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// TreasuryAddress is the reserved account that holds the reward pool.
// It is not a valid ed25519 public key, so no transaction can ever be
// signed for it; only the engine handlers move its funds.
const TreasuryAddress = "treasury"

// Difficulty grades a game template. Reward = BaseReward × multiplier.
type Difficulty uint8

const (
	Easy Difficulty = iota
	Medium
	Hard
)

// Valid reports whether d is a known difficulty grade.
func (d Difficulty) Valid() bool { return d <= Hard }

// GameTemplate is an owner-defined guessable round: the answer is stored
// only as a commitment hash. Templates are never hard-deleted; Active is
// the soft-delete flag so historical games keep a stable template id.
type GameTemplate struct {
	ID         uint64     `json:"id"`
	AnswerHash string     `json:"answer_hash"` // commitment of the normalized answer
	BaseReward uint64     `json:"base_reward"`
	Difficulty Difficulty `json:"difficulty"`
	Active     bool       `json:"active"`
	Creator    string     `json:"creator"` // pubkey hex of the registering owner
	CreatedAt  int64      `json:"created_at"`
}

// PlayerGame is a player's single round slot. At most one per address;
// a resolved round stays queryable until a new round overwrites the slot.
// All times are unix seconds.
type PlayerGame struct {
	GameID      uint64     `json:"game_id"`
	TemplateID  uint64     `json:"template_id"`
	AnswerHash  string     `json:"answer_hash"` // snapshot taken at round start
	StartTime   int64      `json:"start_time"`
	EndTime     int64      `json:"end_time"`
	Reward      uint64     `json:"reward"` // base reward × difficulty multiplier
	Difficulty  Difficulty `json:"difficulty"`
	HintCost    uint64     `json:"hint_cost"`
	Active      bool       `json:"active"`
	Won         bool       `json:"won"`
	HintBought  bool       `json:"hint_bought"`
	Submissions uint64     `json:"submissions"`
}

// PlayerStats are cumulative counters, never reset. Only round resolution
// (win or observed expiry) mutates them; wrong guesses mid-round do not.
type PlayerStats struct {
	GamesPlayed    uint64 `json:"games_played"`
	CorrectAnswers uint64 `json:"correct_answers"`
	RewardsEarned  uint64 `json:"rewards_earned"`
	LastPlayed     int64  `json:"last_played"` // unix seconds
	HintsBought    uint64 `json:"hints_bought"`
	CurrentStreak  uint64 `json:"current_streak"`
	BestStreak     uint64 `json:"best_streak"`
}

// AchievementKind indexes into the per-player achievement flag array.
type AchievementKind int

const (
	AchFirstWin AchievementKind = iota
	AchTenWins
	AchFiftyWins
	AchHundredWins
	AchPerfectStreak
	AchHintMaster
	AchSocialButterfly

	NumAchievements
)

var achievementNames = [NumAchievements]string{
	"FirstWin",
	"TenWins",
	"FiftyWins",
	"HundredWins",
	"PerfectStreak",
	"HintMaster",
	"SocialButterfly",
}

// String returns the badge's display name.
func (k AchievementKind) String() string {
	if k < 0 || k >= NumAchievements {
		return "Unknown"
	}
	return achievementNames[k]
}

// Achievements is the per-player unlock bitset. Flags are monotonic: once
// set they are never cleared, even if the underlying stat later dips below
// the threshold (streak resets do not revoke PerfectStreak).
type Achievements [NumAchievements]bool

// State is the full world-state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts (zero-value account for unknown addresses)
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Game templates
	GetTemplate(id uint64) (*GameTemplate, error)
	SetTemplate(t *GameTemplate) error
	// TemplateIDs returns every registered template id in insertion order.
	TemplateIDs() ([]uint64, error)
	SetTemplateIDs(ids []uint64) error
	// NextTemplateID allocates a monotonic template id, starting at 1.
	NextTemplateID() (uint64, error)

	// Player rounds
	GetGame(player string) (*PlayerGame, error)
	SetGame(player string, g *PlayerGame) error
	// NextGameID allocates a globally monotonic round id, starting at 1.
	NextGameID() (uint64, error)

	// Stats and achievements (ErrNotFound until first written)
	GetStats(player string) (*PlayerStats, error)
	SetStats(player string, s *PlayerStats) error
	GetAchievements(player string) (Achievements, error)
	SetAchievements(player string, a Achievements) error

	// Players is the insertion-ordered set of addresses with recorded
	// stats; it is the leaderboard domain.
	Players() ([]string, error)
	AddPlayer(address string) error

	// Social graph: an ordered friend list per player plus directed pair
	// flags. The list belongs to its owner; the flags are shared.
	GetFriends(player string) ([]string, error)
	SetFriends(player string, friends []string) error
	FriendFlag(from, to string) (bool, error)
	SetFriendFlag(from, to string, v bool) error

	// Engine parameters, written once at genesis.
	GetParams() (*EngineParams, error)
	SetParams(p *EngineParams) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current
	// write buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}
