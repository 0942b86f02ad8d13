package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Engine failure kinds. Handlers wrap these with %w so callers can match
// them with errors.Is regardless of the added context. The messages mirror
// the revert reasons the off-chain client already knows how to translate.
var (
	ErrUnauthorized         = errors.New("not owner")
	ErrRewardOutOfRange     = errors.New("reward out of range")
	ErrNoActiveTemplates    = errors.New("no active templates")
	ErrGameStillActive      = errors.New("game still active")
	ErrGameCompleted        = errors.New("game completed")
	ErrNoActiveGame         = errors.New("no active game")
	ErrEmptyGuess           = errors.New("empty guess")
	ErrHintPurchased        = errors.New("hint purchased")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrInsufficientTreasury = errors.New("insufficient treasury balance")
	ErrInsufficientReserve  = errors.New("withdrawal below reserve floor")
	ErrSelfFriend           = errors.New("cannot friend yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrNotFriends           = errors.New("not friends")
	ErrFriendLimit          = errors.New("friend limit reached")
)
