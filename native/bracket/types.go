package bracket

import (
	"fmt"
	"math/big"
	"strings"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
)

// WinnerShare is the percentage of the prize pool paid to the winner. The
// remainder goes to the treasury.
const WinnerShare = 90

// Status is a tournament's lifecycle stage.
type Status uint8

const (
	StatusUpcoming Status = iota
	StatusActive
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusUpcoming:
		return "upcoming"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus decodes a status name.
func ParseStatus(value string) (Status, error) {
	for s := StatusUpcoming; s <= StatusCancelled; s++ {
		if strings.EqualFold(strings.TrimSpace(value), s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("bracket: %w: unknown status %q", coreerrors.ErrInvalidArgument, value)
}

// Open reports whether results may still be recorded.
func (s Status) Open() bool { return s == StatusUpcoming || s == StatusActive }

// Tournament is an entry-fee bracket. Entry fees sit in the tournament's
// escrow scope until completion or cancellation.
type Tournament struct {
	ID         uint64
	Name       string
	Token      string
	EntryFee   *big.Int
	PrizePool  *big.Int
	MaxPlayers uint32
	Players    uint32
	StartTime  uint64
	EndTime    uint64
	Status     Status
	Winner     [20]byte
	CreatedAt  uint64
}

// Entry is one player's seat in a tournament.
type Entry struct {
	Player        [20]byte
	Score         uint64
	JoinedAt      uint64
	Placement     uint32
	RewardClaimed bool
}

// Params describes a tournament opened by the admin.
type Params struct {
	Name       string
	Token      string
	EntryFee   *big.Int
	MaxPlayers uint32
	StartTime  int64
	EndTime    int64
}

// Result is the payout of a completed tournament.
type Result struct {
	TournamentID uint64
	Winner       [20]byte
	Prize        *big.Int
	Fee          *big.Int
}

// Split divides pool into the winner's prize and the treasury fee. The fee
// absorbs rounding.
func Split(pool *big.Int) (prize, fee *big.Int) {
	prize = new(big.Int).Mul(pool, big.NewInt(WinnerShare))
	prize.Quo(prize, big.NewInt(100))
	return prize, new(big.Int).Sub(pool, prize)
}

type playerList struct {
	Players [][20]byte
}
