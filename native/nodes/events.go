package nodes

import (
	"math/big"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeNodePurchased  = "nodes.purchased"
	TypeRewardsClaimed = "nodes.rewards_claimed"
	TypeTierUpdated    = "nodes.tier_updated"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type NodePurchased struct {
	Owner [20]byte
	Node  Node
	Price *big.Int
}

func (NodePurchased) EventType() string { return TypeNodePurchased }

func (e NodePurchased) Event() *types.Event {
	return &types.Event{Type: TypeNodePurchased, Attributes: map[string]string{
		"owner": crypto.FormatPrincipal(e.Owner),
		"node":  strconv.FormatUint(e.Node.ID, 10),
		"tier":  e.Node.Tier.String(),
		"price": amountString(e.Price),
	}}
}

type RewardsClaimed struct {
	Owner  [20]byte
	Amount *big.Int
	Nodes  uint32
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsClaimed, Attributes: map[string]string{
		"owner":  crypto.FormatPrincipal(e.Owner),
		"amount": amountString(e.Amount),
		"nodes":  strconv.FormatUint(uint64(e.Nodes), 10),
	}}
}

type TierUpdated struct {
	Config TierConfig
}

func (TierUpdated) EventType() string { return TypeTierUpdated }

func (e TierUpdated) Event() *types.Event {
	return &types.Event{Type: TypeTierUpdated, Attributes: map[string]string{
		"tier":        e.Config.Tier.String(),
		"price":       amountString(e.Config.Price),
		"dailyReward": amountString(e.Config.DailyReward),
		"maxSupply":   strconv.FormatUint(e.Config.MaxSupply, 10),
	}}
}
