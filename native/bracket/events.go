package bracket

import (
	"math/big"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeCreated        = "bracket.created"
	TypeJoined         = "bracket.joined"
	TypeStarted        = "bracket.started"
	TypeScoreSubmitted = "bracket.score_submitted"
	TypeCompleted      = "bracket.completed"
	TypeCancelled      = "bracket.cancelled"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func idString(id uint64) string { return strconv.FormatUint(id, 10) }

type Created struct {
	Tournament Tournament
}

func (Created) EventType() string { return TypeCreated }

func (e Created) Event() *types.Event {
	return &types.Event{Type: TypeCreated, Attributes: map[string]string{
		"tournament": idString(e.Tournament.ID),
		"name":       e.Tournament.Name,
		"token":      e.Tournament.Token,
		"entryFee":   amountString(e.Tournament.EntryFee),
		"maxPlayers": strconv.FormatUint(uint64(e.Tournament.MaxPlayers), 10),
	}}
}

type Joined struct {
	TournamentID uint64
	Player       [20]byte
	Fee          *big.Int
	PrizePool    *big.Int
}

func (Joined) EventType() string { return TypeJoined }

func (e Joined) Event() *types.Event {
	return &types.Event{Type: TypeJoined, Attributes: map[string]string{
		"tournament": idString(e.TournamentID),
		"player":     crypto.FormatPrincipal(e.Player),
		"fee":        amountString(e.Fee),
		"prizePool":  amountString(e.PrizePool),
	}}
}

type Started struct {
	TournamentID uint64
	Players      uint32
}

func (Started) EventType() string { return TypeStarted }

func (e Started) Event() *types.Event {
	return &types.Event{Type: TypeStarted, Attributes: map[string]string{
		"tournament": idString(e.TournamentID),
		"players":    strconv.FormatUint(uint64(e.Players), 10),
	}}
}

type ScoreSubmitted struct {
	TournamentID uint64
	Player       [20]byte
	Score        uint64
}

func (ScoreSubmitted) EventType() string { return TypeScoreSubmitted }

func (e ScoreSubmitted) Event() *types.Event {
	return &types.Event{Type: TypeScoreSubmitted, Attributes: map[string]string{
		"tournament": idString(e.TournamentID),
		"player":     crypto.FormatPrincipal(e.Player),
		"score":      strconv.FormatUint(e.Score, 10),
	}}
}

type Completed struct {
	Result Result
}

func (Completed) EventType() string { return TypeCompleted }

func (e Completed) Event() *types.Event {
	return &types.Event{Type: TypeCompleted, Attributes: map[string]string{
		"tournament": idString(e.Result.TournamentID),
		"winner":     crypto.FormatPrincipal(e.Result.Winner),
		"prize":      amountString(e.Result.Prize),
		"fee":        amountString(e.Result.Fee),
	}}
}

type Cancelled struct {
	TournamentID uint64
	Refunded     *big.Int
}

func (Cancelled) EventType() string { return TypeCancelled }

func (e Cancelled) Event() *types.Event {
	return &types.Event{Type: TypeCancelled, Attributes: map[string]string{
		"tournament": idString(e.TournamentID),
		"refunded":   amountString(e.Refunded),
	}}
}
