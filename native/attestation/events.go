package attestation

import (
	"encoding/hex"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeMatchAttested       = "attestation.match_attested"
	TypeTournamentFinalized = "attestation.tournament_finalized"
	TypeDisputeFiled        = "attestation.dispute_filed"
	TypeDisputeResolved     = "attestation.dispute_resolved"
)

func idString(id uint64) string { return strconv.FormatUint(id, 10) }

func hashString(h [32]byte) string { return hex.EncodeToString(h[:]) }

type MatchAttested struct {
	Match Match
}

func (MatchAttested) EventType() string { return TypeMatchAttested }

func (e MatchAttested) Event() *types.Event {
	return &types.Event{Type: TypeMatchAttested, Attributes: map[string]string{
		"tournament":   idString(e.Match.TournamentID),
		"match":        idString(e.Match.MatchID),
		"resultHash":   hashString(e.Match.ResultHash),
		"winner":       crypto.FormatPrincipal(e.Match.Winner),
		"participants": strconv.Itoa(len(e.Match.Participants)),
		"attestor":     crypto.FormatPrincipal(e.Match.AttestedBy),
	}}
}

type TournamentFinalized struct {
	Tournament Tournament
}

func (TournamentFinalized) EventType() string { return TypeTournamentFinalized }

func (e TournamentFinalized) Event() *types.Event {
	return &types.Event{Type: TypeTournamentFinalized, Attributes: map[string]string{
		"tournament":  idString(e.Tournament.TournamentID),
		"resultsHash": hashString(e.Tournament.FinalResultsHash),
		"matches":     idString(e.Tournament.TotalMatches),
		"winner":      crypto.FormatPrincipal(e.Tournament.Winner),
		"runnerUp":    crypto.FormatPrincipal(e.Tournament.RunnerUp),
		"prizeHash":   hashString(e.Tournament.PrizeDistributionHash),
		"finalizedBy": crypto.FormatPrincipal(e.Tournament.FinalizedBy),
	}}
}

type DisputeFiled struct {
	Dispute Dispute
}

func (DisputeFiled) EventType() string { return TypeDisputeFiled }

func (e DisputeFiled) Event() *types.Event {
	return &types.Event{Type: TypeDisputeFiled, Attributes: map[string]string{
		"dispute":    idString(e.Dispute.ID),
		"match":      idString(e.Dispute.MatchID),
		"challenger": crypto.FormatPrincipal(e.Dispute.Challenger),
		"reasonHash": hashString(e.Dispute.ReasonHash),
	}}
}

type DisputeResolved struct {
	Dispute Dispute
}

func (DisputeResolved) EventType() string { return TypeDisputeResolved }

func (e DisputeResolved) Event() *types.Event {
	return &types.Event{Type: TypeDisputeResolved, Attributes: map[string]string{
		"dispute":        idString(e.Dispute.ID),
		"match":          idString(e.Dispute.MatchID),
		"resolutionHash": hashString(e.Dispute.ResolutionHash),
		"resolvedBy":     crypto.FormatPrincipal(e.Dispute.ResolvedBy),
	}}
}
