package attestation

// Score is one participant's points in an attested match.
type Score struct {
	Player [20]byte
	Points uint64
}

// Match is the signed-off result of one match. Once stored it never
// changes; disputes are recorded beside it.
type Match struct {
	TournamentID uint64
	MatchID      uint64
	ResultHash   [32]byte
	Winner       [20]byte
	Participants [][20]byte
	Scores       []Score
	MetadataHash [32]byte
	AttestedAt   uint64
	AttestedBy   [20]byte
}

// MatchParams describes a match result submitted by an attestor.
type MatchParams struct {
	TournamentID uint64
	MatchID      uint64
	ResultHash   [32]byte
	Winner       [20]byte
	Participants [][20]byte
	Scores       []Score
	MetadataHash [32]byte
}

// Tournament is the final standing of a tournament.
type Tournament struct {
	TournamentID          uint64
	FinalResultsHash      [32]byte
	TotalMatches          uint64
	Winner                [20]byte
	RunnerUp              [20]byte
	PrizeDistributionHash [32]byte
	FinalizedAt           uint64
	FinalizedBy           [20]byte
}

// TournamentParams describes a final standing submitted by an attestor.
// The match count is taken from the attested matches.
type TournamentParams struct {
	TournamentID          uint64
	FinalResultsHash      [32]byte
	Winner                [20]byte
	RunnerUp              [20]byte
	PrizeDistributionHash [32]byte
}

// Dispute challenges an attested match.
type Dispute struct {
	ID             uint64
	MatchID        uint64
	Challenger     [20]byte
	ReasonHash     [32]byte
	CreatedAt      uint64
	Resolved       bool
	ResolutionHash [32]byte
	ResolvedAt     uint64
	ResolvedBy     [20]byte
}

type idList struct {
	IDs []uint64
}
