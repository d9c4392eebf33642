package nodes

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/accrual"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

// Namespace prefixes every key written by the node system.
const Namespace = "nodes"

var (
	errNilState    = errors.New("nodes: state not configured")
	errNilAssets   = errors.New("nodes: asset ledger not configured")
	errNilTreasury = errors.New("nodes: treasury not configured")
)

// Assets moves funds between holders.
type Assets interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Treasury receives node sales and funds node rewards.
type Treasury interface {
	Address() [20]byte
	Credit(token string, amount *big.Int) error
	Pay(token string, to [20]byte, amount *big.Int) error
}

// InitParams seeds the node system. Empty Tiers selects DefaultTiers.
type InitParams struct {
	Admin [20]byte
	Token string
	Tiers []TierConfig
}

// Engine sells tiered nodes and pays their flat daily rewards from the
// treasury.
type Engine struct {
	state    state.Writer
	assets   Assets
	treasury Treasury
	emitter  events.Emitter
	nowFn    func() int64
	roles    *roles.Registry
}

// NewEngine creates a node engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		roles:   roles.NewRegistry(Namespace),
	}
}

// Bind points the engine at one state transaction, emitter and clock.
func (e *Engine) Bind(s state.Writer, emitter events.Emitter, now func() int64) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.state, e.emitter, e.nowFn = s, emitter, now
	e.roles.SetState(s)
	e.roles.SetEmitter(emitter)
}

// SetAssets configures the asset ledger.
func (e *Engine) SetAssets(a Assets) { e.assets = a }

// SetTreasury configures the treasury that receives sales and funds rewards.
func (e *Engine) SetTreasury(t Treasury) { e.treasury = t }

// Roles exposes the module's role registry.
func (e *Engine) Roles() *roles.Registry { return e.roles }

func tokenKey() []byte       { return []byte(Namespace + "/config/token") }
func distributedKey() []byte { return []byte(Namespace + "/distributed") }
func sequenceKey() []byte    { return []byte(Namespace + "/sequence") }

func tierKey(t Tier) []byte {
	return []byte(Namespace + "/tier/" + strconv.Itoa(int(t)))
}

func ownerKey(owner [20]byte) []byte {
	return []byte(Namespace + "/owner/" + hex.EncodeToString(owner[:]))
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.assets == nil {
		return errNilAssets
	}
	if e.treasury == nil {
		return errNilTreasury
	}
	return nil
}

// Initialize sets the admin, reward token and tier table. It runs once.
func (e *Engine) Initialize(p InitParams) error {
	if e.state == nil {
		return errNilState
	}
	token := strings.ToUpper(strings.TrimSpace(p.Token))
	if token == "" {
		return fmt.Errorf("nodes: %w: token required", coreerrors.ErrInvalidArgument)
	}
	tiers := p.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	for _, cfg := range tiers {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if err := e.roles.Initialize(p.Admin); err != nil {
		return err
	}
	if err := e.state.KVPut(tokenKey(), token); err != nil {
		return err
	}
	for _, cfg := range tiers {
		cfg.Supply = 0
		if err := e.state.KVPut(tierKey(cfg.Tier), &cfg); err != nil {
			return err
		}
	}
	return nil
}

// Token returns the sale and reward token.
func (e *Engine) Token() (string, error) {
	if e.state == nil {
		return "", errNilState
	}
	var token string
	ok, err := e.state.KVGet(tokenKey(), &token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("nodes: %w", coreerrors.ErrNotInitialized)
	}
	return token, nil
}

// TierConfig returns the configuration and sales count of tier.
func (e *Engine) TierConfig(tier Tier) (*TierConfig, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("nodes: %w: tier %s", coreerrors.ErrInvalidArgument, tier)
	}
	cfg := new(TierConfig)
	ok, err := e.state.KVGet(tierKey(tier), cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("nodes: %w: tier %s", coreerrors.ErrNotInitialized, tier)
	}
	return cfg, nil
}

// Nodes returns every node held by owner in purchase order.
func (e *Engine) Nodes(owner [20]byte) ([]Node, error) {
	if e.state == nil {
		return nil, errNilState
	}
	p := new(portfolio)
	if _, err := e.state.KVGet(ownerKey(owner), p); err != nil {
		return nil, err
	}
	return p.Nodes, nil
}

// TotalDistributed returns the cumulative rewards paid to node owners.
func (e *Engine) TotalDistributed() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(e.state, distributedKey())
}

// Paused reports the circuit breaker.
func (e *Engine) Paused() (bool, error) { return e.roles.Paused() }

// PurchaseNode sells one node of tier to buyer. The price goes to the
// treasury; a sold-out tier fails with CapacityExceeded.
func (e *Engine) PurchaseNode(buyer [20]byte, tier Tier) (*Node, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	cfg, err := e.TierConfig(tier)
	if err != nil {
		return nil, err
	}
	if cfg.Supply >= cfg.MaxSupply {
		return nil, fmt.Errorf("nodes: %w: %s sold out at %d", coreerrors.ErrCapacityExceeded, tier, cfg.MaxSupply)
	}
	token, err := e.Token()
	if err != nil {
		return nil, err
	}
	if err := e.assets.Transfer(token, buyer, e.treasury.Address(), cfg.Price); err != nil {
		return nil, err
	}
	if err := e.treasury.Credit(token, cfg.Price); err != nil {
		return nil, err
	}
	cfg.Supply++
	if err := e.state.KVPut(tierKey(tier), cfg); err != nil {
		return nil, err
	}
	id, err := state.NextSequence(e.state, sequenceKey())
	if err != nil {
		return nil, err
	}
	now := uint64(e.nowFn())
	node := Node{ID: id, Tier: tier, PurchasedAt: now, LastClaim: now, TotalClaimed: big.NewInt(0)}
	p := new(portfolio)
	if _, err := e.state.KVGet(ownerKey(buyer), p); err != nil {
		return nil, err
	}
	p.Nodes = append(p.Nodes, node)
	if err := e.state.KVPut(ownerKey(buyer), p); err != nil {
		return nil, err
	}
	e.emitter.Emit(NodePurchased{Owner: buyer, Node: node, Price: new(big.Int).Set(cfg.Price)})
	return &node, nil
}

// holdings maps owned nodes onto flat accrual schedules at the current tier
// rates.
func (e *Engine) holdings(nodes []Node) ([]*accrual.Holding, error) {
	rates := make(map[Tier]*big.Int, len(Tiers()))
	out := make([]*accrual.Holding, len(nodes))
	for i, n := range nodes {
		rate, ok := rates[n.Tier]
		if !ok {
			cfg, err := e.TierConfig(n.Tier)
			if err != nil {
				return nil, err
			}
			rate = cfg.DailyReward
			rates[n.Tier] = rate
		}
		out[i] = &accrual.Holding{
			ID:         strconv.FormatUint(n.ID, 10),
			Schedule:   accrual.Flat{DailyRate: rate},
			LastClaim:  int64(n.LastClaim),
			Cumulative: n.TotalClaimed,
		}
	}
	return out, nil
}

// PendingRewards returns the rewards owner could claim now.
func (e *Engine) PendingRewards(owner [20]byte) (*big.Int, error) {
	nodes, err := e.Nodes(owner)
	if err != nil {
		return nil, err
	}
	holdings, err := e.holdings(nodes)
	if err != nil {
		return nil, err
	}
	total, _, err := accrual.Aggregate(holdings, e.nowFn())
	return total, err
}

// ClaimRewards pays every whole day accrued across owner's nodes in one
// treasury transfer.
func (e *Engine) ClaimRewards(owner [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	nodes, err := e.Nodes(owner)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("nodes: %w: %s owns no nodes", coreerrors.ErrNotFound, crypto.FormatPrincipal(owner))
	}
	token, err := e.Token()
	if err != nil {
		return nil, err
	}
	holdings, err := e.holdings(nodes)
	if err != nil {
		return nil, err
	}
	funder := accrual.FunderFunc(func(to [20]byte, amount *big.Int) error {
		return e.treasury.Pay(token, to, amount)
	})
	total, err := accrual.ClaimAll(holdings, owner, funder, e.nowFn())
	if err != nil {
		return nil, err
	}
	for i, h := range holdings {
		nodes[i].LastClaim = uint64(h.LastClaim)
		nodes[i].TotalClaimed = h.Cumulative
	}
	if err := e.state.KVPut(ownerKey(owner), &portfolio{Nodes: nodes}); err != nil {
		return nil, err
	}
	if _, err := state.AddBig(e.state, distributedKey(), total); err != nil {
		return nil, err
	}
	e.emitter.Emit(RewardsClaimed{Owner: owner, Amount: new(big.Int).Set(total), Nodes: uint32(len(nodes))})
	return total, nil
}

// UpdateTier replaces a tier's price, reward and supply limit. The limit
// may not drop below the number already sold. Reward changes apply to
// unclaimed days as well.
func (e *Engine) UpdateTier(caller [20]byte, next TierConfig) (*TierConfig, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	cur, err := e.TierConfig(next.Tier)
	if err != nil {
		return nil, err
	}
	if next.MaxSupply < cur.Supply {
		return nil, fmt.Errorf("nodes: %w: max supply %d below %d sold", coreerrors.ErrInvalidArgument, next.MaxSupply, cur.Supply)
	}
	next.Supply = cur.Supply
	if err := e.state.KVPut(tierKey(next.Tier), &next); err != nil {
		return nil, err
	}
	e.emitter.Emit(TierUpdated{Config: next})
	return &next, nil
}

// RotateAdmin hands the admin capability to next.
func (e *Engine) RotateAdmin(caller, next [20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	return e.roles.RotateAdmin(caller, next)
}

// SetPaused toggles the circuit breaker.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	return e.roles.SetPaused(caller, paused)
}
