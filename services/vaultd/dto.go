package vaultd

import (
	"encoding/hex"

	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/attestation"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/bracket"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/credits"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/escrow"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/hostrewards"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/lpstaking"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/multisig"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/nodes"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/payout"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/raffle"
)

// Amounts travel as base-unit decimal strings and addresses as bech32.

type entryJSON struct {
	Principal string `json:"principal"`
	Amount    string `json:"amount"`
}

type tournamentJSON struct {
	ID             string      `json:"id"`
	Token          string      `json:"token"`
	EntryFee       string      `json:"entry_fee"`
	PayoutCap      string      `json:"payout_cap"`
	TotalDeposited string      `json:"total_deposited"`
	Deadline       int64       `json:"deadline"`
	Finalized      bool        `json:"finalized"`
	LastNonce      uint64      `json:"last_nonce"`
	Entries        []entryJSON `json:"entries"`
	CreatedAt      int64       `json:"created_at"`
}

func tournamentFrom(a *escrow.Account, lastNonce uint64) tournamentJSON {
	out := tournamentJSON{
		ID:             a.ScopeID,
		Token:          a.Token,
		EntryFee:       amountString(a.EntryFee),
		PayoutCap:      amountString(a.PayoutCap),
		TotalDeposited: amountString(a.TotalDeposited),
		Deadline:       a.Deadline,
		Finalized:      a.Finalized,
		LastNonce:      lastNonce,
		Entries:        make([]entryJSON, 0, len(a.Entries)),
		CreatedAt:      a.CreatedAt,
	}
	for _, e := range a.Entries {
		out.Entries = append(out.Entries, entryJSON{Principal: crypto.FormatPrincipal(e.Principal), Amount: amountString(e.Amount)})
	}
	return out
}

type receiptJSON struct {
	Tournament string `json:"tournament"`
	Recipient  string `json:"recipient"`
	Amount     string `json:"amount"`
	Nonce      uint64 `json:"nonce"`
	Attestor   string `json:"attestor"`
	ExecutedAt uint64 `json:"executed_at"`
}

func receiptFrom(r *payout.Receipt) receiptJSON {
	return receiptJSON{
		Tournament: r.Scope,
		Recipient:  crypto.FormatPrincipal(r.Recipient),
		Amount:     amountString(r.Amount),
		Nonce:      r.Nonce,
		Attestor:   crypto.FormatPrincipal(r.Attestor),
		ExecutedAt: r.ExecutedAt,
	}
}

type proposalJSON struct {
	ID         uint64   `json:"id"`
	Token      string   `json:"token"`
	Amount     string   `json:"amount"`
	Recipient  string   `json:"recipient"`
	Proposer   string   `json:"proposer"`
	Approvals  []string `json:"approvals"`
	Threshold  uint32   `json:"threshold"`
	Executed   bool     `json:"executed"`
	CreatedAt  uint64   `json:"created_at"`
	ExecutedAt uint64   `json:"executed_at,omitempty"`
}

func proposalFrom(p *multisig.Proposal) proposalJSON {
	out := proposalJSON{
		ID:         p.ID,
		Token:      p.Token,
		Amount:     amountString(p.Amount),
		Recipient:  crypto.FormatPrincipal(p.Recipient),
		Proposer:   crypto.FormatPrincipal(p.Proposer),
		Approvals:  make([]string, 0, len(p.Approvals)),
		Threshold:  p.Threshold,
		Executed:   p.Executed,
		CreatedAt:  p.CreatedAt,
		ExecutedAt: p.ExecutedAt,
	}
	for _, a := range p.Approvals {
		out.Approvals = append(out.Approvals, crypto.FormatPrincipal(a))
	}
	return out
}

type nodeJSON struct {
	ID           uint64 `json:"id"`
	Tier         string `json:"tier"`
	PurchasedAt  uint64 `json:"purchased_at"`
	LastClaim    uint64 `json:"last_claim"`
	TotalClaimed string `json:"total_claimed"`
}

func nodeFrom(n nodes.Node) nodeJSON {
	return nodeJSON{
		ID:           n.ID,
		Tier:         n.Tier.String(),
		PurchasedAt:  n.PurchasedAt,
		LastClaim:    n.LastClaim,
		TotalClaimed: amountString(n.TotalClaimed),
	}
}

type claimJSON struct {
	ID              uint64 `json:"id"`
	JobID           string `json:"job_id"`
	Host            string `json:"host"`
	Amount          string `json:"amount"`
	Nonce           uint64 `json:"nonce"`
	Deadline        uint64 `json:"deadline"`
	AttestationHash string `json:"attestation_hash"`
	PaidAt          uint64 `json:"paid_at"`
}

func claimFrom(c *hostrewards.Claim) claimJSON {
	return claimJSON{
		ID:              c.ID,
		JobID:           c.JobID,
		Host:            crypto.FormatPrincipal(c.Host),
		Amount:          amountString(c.Amount),
		Nonce:           c.Nonce,
		Deadline:        c.Deadline,
		AttestationHash: hex.EncodeToString(c.AttestationHash[:]),
		PaidAt:          c.PaidAt,
	}
}

type poolJSON struct {
	ID          string `json:"id"`
	StakeToken  string `json:"stake_token"`
	RewardToken string `json:"reward_token"`
	RewardRate  string `json:"reward_rate"`
	LockPeriod  uint64 `json:"lock_period"`
	TotalStaked string `json:"total_staked"`
}

func poolFrom(p *lpstaking.Pool) poolJSON {
	return poolJSON{
		ID:          p.ID,
		StakeToken:  p.StakeToken,
		RewardToken: p.RewardToken,
		RewardRate:  amountString(p.RewardRate),
		LockPeriod:  p.LockPeriod,
		TotalStaked: amountString(p.TotalStaked),
	}
}

type positionJSON struct {
	Pool         string `json:"pool"`
	Owner        string `json:"owner"`
	Amount       string `json:"amount"`
	StakedAt     uint64 `json:"staked_at"`
	LastClaim    uint64 `json:"last_claim"`
	TotalClaimed string `json:"total_claimed"`
	Pending      string `json:"pending,omitempty"`
}

func positionFrom(p *lpstaking.Position) positionJSON {
	return positionJSON{
		Pool:         p.Pool,
		Owner:        crypto.FormatPrincipal(p.Owner),
		Amount:       amountString(p.Amount),
		StakedAt:     p.StakedAt,
		LastClaim:    p.LastClaim,
		TotalClaimed: amountString(p.TotalClaimed),
	}
}

type raffleJSON struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Token       string `json:"token"`
	TicketPrice string `json:"ticket_price"`
	MaxTickets  uint32 `json:"max_tickets"`
	TicketsSold uint32 `json:"tickets_sold"`
	EndTime     uint64 `json:"end_time"`
	Active      bool   `json:"active"`
	Drawn       bool   `json:"drawn"`
	Cancelled   bool   `json:"cancelled"`
	Winner      string `json:"winner,omitempty"`
}

func raffleFrom(r *raffle.Raffle) raffleJSON {
	out := raffleJSON{
		ID:          r.ID,
		Name:        r.Name,
		Token:       r.Token,
		TicketPrice: amountString(r.TicketPrice),
		MaxTickets:  r.MaxTickets,
		TicketsSold: r.TicketsSold,
		EndTime:     r.EndTime,
		Active:      r.Active,
		Drawn:       r.Drawn,
		Cancelled:   r.Cancelled,
	}
	if r.Drawn {
		out.Winner = crypto.FormatPrincipal(r.Winner)
	}
	return out
}

type ticketsJSON struct {
	RaffleID uint64 `json:"raffle_id"`
	Count    uint32 `json:"count"`
}

type hostJSON struct {
	Address       string `json:"address"`
	Stake         string `json:"stake"`
	RegisteredAt  uint64 `json:"registered_at"`
	TotalEarnings string `json:"total_earnings"`
	JobsCompleted uint64 `json:"jobs_completed"`
	Reputation    uint32 `json:"reputation"`
	Active        bool   `json:"active"`
	LastHeartbeat uint64 `json:"last_heartbeat"`
}

func hostFrom(h *hostrewards.Host) hostJSON {
	return hostJSON{
		Address:       crypto.FormatPrincipal(h.Address),
		Stake:         amountString(h.Stake),
		RegisteredAt:  h.RegisteredAt,
		TotalEarnings: amountString(h.TotalEarnings),
		JobsCompleted: h.JobsCompleted,
		Reputation:    h.Reputation,
		Active:        h.Active,
		LastHeartbeat: h.LastHeartbeat,
	}
}

type jobJSON struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	Requester   string `json:"requester"`
	Type        string `json:"type"`
	Reward      string `json:"reward"`
	Paid        string `json:"paid"`
	Status      string `json:"status"`
	StartedAt   uint64 `json:"started_at"`
	CompletedAt uint64 `json:"completed_at,omitempty"`
	ProofHash   string `json:"proof_hash,omitempty"`
}

func jobFrom(j *hostrewards.Job) jobJSON {
	out := jobJSON{
		ID:          j.ID,
		Host:        crypto.FormatPrincipal(j.Host),
		Requester:   crypto.FormatPrincipal(j.Requester),
		Type:        j.Type.String(),
		Reward:      amountString(j.Reward),
		Paid:        amountString(j.Paid),
		Status:      j.Status.String(),
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.ProofHash != ([32]byte{}) {
		out.ProofHash = hex.EncodeToString(j.ProofHash[:])
	}
	return out
}

type scoreJSON struct {
	Player string `json:"player"`
	Points uint64 `json:"points"`
}

type matchJSON struct {
	TournamentID uint64      `json:"tournament_id"`
	MatchID      uint64      `json:"match_id"`
	ResultHash   string      `json:"result_hash"`
	Winner       string      `json:"winner"`
	Participants []string    `json:"participants"`
	Scores       []scoreJSON `json:"scores"`
	MetadataHash string      `json:"metadata_hash"`
	AttestedAt   uint64      `json:"attested_at"`
	AttestedBy   string      `json:"attested_by"`
}

func matchFrom(m *attestation.Match) matchJSON {
	out := matchJSON{
		TournamentID: m.TournamentID,
		MatchID:      m.MatchID,
		ResultHash:   hex.EncodeToString(m.ResultHash[:]),
		Winner:       crypto.FormatPrincipal(m.Winner),
		Participants: make([]string, 0, len(m.Participants)),
		Scores:       make([]scoreJSON, 0, len(m.Scores)),
		MetadataHash: hex.EncodeToString(m.MetadataHash[:]),
		AttestedAt:   m.AttestedAt,
		AttestedBy:   crypto.FormatPrincipal(m.AttestedBy),
	}
	for _, p := range m.Participants {
		out.Participants = append(out.Participants, crypto.FormatPrincipal(p))
	}
	for _, sc := range m.Scores {
		out.Scores = append(out.Scores, scoreJSON{Player: crypto.FormatPrincipal(sc.Player), Points: sc.Points})
	}
	return out
}

type standingJSON struct {
	TournamentID          uint64   `json:"tournament_id"`
	FinalResultsHash      string   `json:"final_results_hash"`
	TotalMatches          uint64   `json:"total_matches"`
	Matches               []uint64 `json:"matches"`
	Winner                string   `json:"winner"`
	RunnerUp              string   `json:"runner_up"`
	PrizeDistributionHash string   `json:"prize_distribution_hash"`
	FinalizedAt           uint64   `json:"finalized_at"`
	FinalizedBy           string   `json:"finalized_by"`
}

func standingFrom(t *attestation.Tournament, matches []uint64) standingJSON {
	if matches == nil {
		matches = []uint64{}
	}
	return standingJSON{
		TournamentID:          t.TournamentID,
		FinalResultsHash:      hex.EncodeToString(t.FinalResultsHash[:]),
		TotalMatches:          t.TotalMatches,
		Matches:               matches,
		Winner:                crypto.FormatPrincipal(t.Winner),
		RunnerUp:              crypto.FormatPrincipal(t.RunnerUp),
		PrizeDistributionHash: hex.EncodeToString(t.PrizeDistributionHash[:]),
		FinalizedAt:           t.FinalizedAt,
		FinalizedBy:           crypto.FormatPrincipal(t.FinalizedBy),
	}
}

type disputeJSON struct {
	ID             uint64 `json:"id"`
	MatchID        uint64 `json:"match_id"`
	Challenger     string `json:"challenger"`
	ReasonHash     string `json:"reason_hash"`
	CreatedAt      uint64 `json:"created_at"`
	Resolved       bool   `json:"resolved"`
	ResolutionHash string `json:"resolution_hash,omitempty"`
	ResolvedAt     uint64 `json:"resolved_at,omitempty"`
	ResolvedBy     string `json:"resolved_by,omitempty"`
}

func disputeFrom(d *attestation.Dispute) disputeJSON {
	out := disputeJSON{
		ID:         d.ID,
		MatchID:    d.MatchID,
		Challenger: crypto.FormatPrincipal(d.Challenger),
		ReasonHash: hex.EncodeToString(d.ReasonHash[:]),
		CreatedAt:  d.CreatedAt,
		Resolved:   d.Resolved,
	}
	if d.Resolved {
		out.ResolutionHash = hex.EncodeToString(d.ResolutionHash[:])
		out.ResolvedAt = d.ResolvedAt
		out.ResolvedBy = crypto.FormatPrincipal(d.ResolvedBy)
	}
	return out
}

type bracketJSON struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Token      string `json:"token"`
	EntryFee   string `json:"entry_fee"`
	PrizePool  string `json:"prize_pool"`
	MaxPlayers uint32 `json:"max_players"`
	Players    uint32 `json:"players"`
	StartTime  uint64 `json:"start_time"`
	EndTime    uint64 `json:"end_time"`
	Status     string `json:"status"`
	Winner     string `json:"winner,omitempty"`
	CreatedAt  uint64 `json:"created_at"`
}

func bracketFrom(t *bracket.Tournament) bracketJSON {
	out := bracketJSON{
		ID:         t.ID,
		Name:       t.Name,
		Token:      t.Token,
		EntryFee:   amountString(t.EntryFee),
		PrizePool:  amountString(t.PrizePool),
		MaxPlayers: t.MaxPlayers,
		Players:    t.Players,
		StartTime:  t.StartTime,
		EndTime:    t.EndTime,
		Status:     t.Status.String(),
		CreatedAt:  t.CreatedAt,
	}
	if t.Status == bracket.StatusCompleted {
		out.Winner = crypto.FormatPrincipal(t.Winner)
	}
	return out
}

type bracketEntryJSON struct {
	Player        string `json:"player"`
	Score         uint64 `json:"score"`
	JoinedAt      uint64 `json:"joined_at"`
	Placement     uint32 `json:"placement,omitempty"`
	RewardClaimed bool   `json:"reward_claimed"`
}

func bracketEntryFrom(e *bracket.Entry) bracketEntryJSON {
	return bracketEntryJSON{
		Player:        crypto.FormatPrincipal(e.Player),
		Score:         e.Score,
		JoinedAt:      e.JoinedAt,
		Placement:     e.Placement,
		RewardClaimed: e.RewardClaimed,
	}
}

type bracketResultJSON struct {
	TournamentID uint64 `json:"tournament_id"`
	Winner       string `json:"winner"`
	Prize        string `json:"prize"`
	Fee          string `json:"fee"`
}

type creditAccountJSON struct {
	Address        string `json:"address"`
	Balance        string `json:"balance"`
	LifetimeEarned string `json:"lifetime_earned"`
	LifetimeSpent  string `json:"lifetime_spent"`
	LastActivity   uint64 `json:"last_activity"`
}

func creditAccountFrom(who [20]byte, a *credits.Account) creditAccountJSON {
	return creditAccountJSON{
		Address:        crypto.FormatPrincipal(who),
		Balance:        amountString(a.Balance),
		LifetimeEarned: amountString(a.LifetimeEarned),
		LifetimeSpent:  amountString(a.LifetimeSpent),
		LastActivity:   a.LastActivity,
	}
}

type packageJSON struct {
	ID      uint32 `json:"id"`
	Credits string `json:"credits"`
	Price   string `json:"price"`
	Bonus   string `json:"bonus"`
	Total   string `json:"total"`
	Active  bool   `json:"active"`
}

func packageFrom(p *credits.Package) packageJSON {
	return packageJSON{
		ID:      p.ID,
		Credits: amountString(p.Credits),
		Price:   amountString(p.Price),
		Bonus:   amountString(p.Bonus),
		Total:   amountString(p.Total()),
		Active:  p.Active,
	}
}
