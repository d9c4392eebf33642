package credits

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
	"github.com/hustletexas/cyber-arcade-verse-rally/native/common"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

// Namespace prefixes every key written by the credits module.
const Namespace = "credits"

const daySeconds = 24 * 60 * 60

var (
	errNilState    = errors.New("credits: state not configured")
	errNilAssets   = errors.New("credits: asset ledger not configured")
	errNilTreasury = errors.New("credits: treasury not configured")
)

// Assets moves the payment token.
type Assets interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Treasury receives package payments.
type Treasury interface {
	Address() [20]byte
	Credit(token string, amount *big.Int) error
}

// InitParams seeds the credits module. Nil Activities and Packages keep the
// launch defaults.
type InitParams struct {
	Admin        [20]byte
	Minters      [][20]byte
	Burners      [][20]byte
	PaymentToken string
	Limits       Limits
	Activities   map[Activity]ActivityConfig
	Packages     []Package
}

// Engine is the compute-credit ledger: activity rewards, purchasable
// bundles and spending. Credits are an internal balance, not a token.
type Engine struct {
	state    state.Writer
	assets   Assets
	treasury Treasury
	emitter  events.Emitter
	nowFn    func() int64
	roles    *roles.Registry
}

// NewEngine creates a credits engine with a no-op emitter.
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

// SetAssets configures the asset ledger used for purchases.
func (e *Engine) SetAssets(a Assets) { e.assets = a }

// SetTreasury configures the treasury receiving purchases.
func (e *Engine) SetTreasury(t Treasury) { e.treasury = t }

// Roles exposes the module's role registry.
func (e *Engine) Roles() *roles.Registry { return e.roles }

func paymentTokenKey() []byte    { return []byte(Namespace + "/config/payment-token") }
func limitsKey() []byte          { return []byte(Namespace + "/config/limits") }
func supplyKey() []byte          { return []byte(Namespace + "/supply") }
func packageSequenceKey() []byte { return []byte(Namespace + "/count/packages") }

func packageKey(id uint32) []byte {
	return []byte(Namespace + "/package/" + strconv.FormatUint(uint64(id), 10))
}

func activityConfigKey(a Activity) []byte {
	return []byte(Namespace + "/activity-config/" + a.String())
}

func accountKey(who [20]byte) []byte {
	return []byte(Namespace + "/account/" + hex.EncodeToString(who[:]))
}

func activityKey(a Activity, who [20]byte) []byte {
	return []byte(Namespace + "/activity/" + a.String() + "/" + hex.EncodeToString(who[:]))
}

func mintWindowKey(who [20]byte) []byte {
	return []byte(Namespace + "/mint-window/" + hex.EncodeToString(who[:]))
}

func positive(amount *big.Int, what string) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("credits: %w: %s must be positive", coreerrors.ErrInvalidArgument, what)
	}
	return nil
}

func nonNegative(v *big.Int) *big.Int {
	if v == nil || v.Sign() < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Initialize sets the admin, the minting and burning keys, the payment
// token, the limits, the reward table and the launch packages. It runs once.
func (e *Engine) Initialize(p InitParams) error {
	if e.state == nil {
		return errNilState
	}
	token := strings.ToUpper(strings.TrimSpace(p.PaymentToken))
	if token == "" {
		return fmt.Errorf("credits: %w: payment token required", coreerrors.ErrInvalidArgument)
	}
	if err := e.roles.Initialize(p.Admin); err != nil {
		return err
	}
	if len(p.Minters) > 0 {
		if err := e.roles.Replace(p.Admin, roles.RoleMinter, p.Minters); err != nil {
			return err
		}
	}
	if len(p.Burners) > 0 {
		if err := e.roles.Replace(p.Admin, roles.RoleBurner, p.Burners); err != nil {
			return err
		}
	}
	if err := e.state.KVPut(paymentTokenKey(), token); err != nil {
		return err
	}
	if err := e.storeLimits(p.Limits); err != nil {
		return err
	}
	activities := p.Activities
	if activities == nil {
		activities = DefaultActivities()
	}
	for a, cfg := range activities {
		if err := e.storeActivity(a, cfg); err != nil {
			return err
		}
	}
	packages := p.Packages
	if packages == nil {
		packages = DefaultPackages()
	}
	for _, pkg := range packages {
		if _, err := e.addPackage(pkg.Credits, pkg.Price, pkg.Bonus); err != nil {
			return err
		}
	}
	return nil
}

// Paused reports the circuit breaker.
func (e *Engine) Paused() (bool, error) { return e.roles.Paused() }

// PaymentToken returns the token packages are priced in.
func (e *Engine) PaymentToken() (string, error) {
	if e.state == nil {
		return "", errNilState
	}
	var token string
	ok, err := e.state.KVGet(paymentTokenKey(), &token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("credits: %w", coreerrors.ErrNotInitialized)
	}
	return token, nil
}

// Limits returns the issuance limits.
func (e *Engine) Limits() (Limits, error) {
	if e.state == nil {
		return Limits{}, errNilState
	}
	var l Limits
	if _, err := e.state.KVGet(limitsKey(), &l); err != nil {
		return Limits{}, err
	}
	return l, nil
}

func (e *Engine) storeLimits(l Limits) error {
	return e.state.KVPut(limitsKey(), &Limits{MaxSupply: nonNegative(l.MaxSupply), DailyMintLimit: nonNegative(l.DailyMintLimit)})
}

// Supply returns the credits outstanding.
func (e *Engine) Supply() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(e.state, supplyKey())
}

// Account returns who's balance and lifetime totals. Unknown users get a
// zero account.
func (e *Engine) Account(who [20]byte) (*Account, error) {
	if e.state == nil {
		return nil, errNilState
	}
	acc := newAccount()
	if _, err := e.state.KVGet(accountKey(who), acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Balance returns who's spendable credits.
func (e *Engine) Balance(who [20]byte) (*big.Int, error) {
	acc, err := e.Account(who)
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

// ActivityConfig returns the reward settings of an activity.
func (e *Engine) ActivityConfig(a Activity) (*ActivityConfig, error) {
	if e.state == nil {
		return nil, errNilState
	}
	cfg := new(ActivityConfig)
	ok, err := e.state.KVGet(activityConfigKey(a), cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("credits: %w: activity %s", coreerrors.ErrNotFound, a)
	}
	return cfg, nil
}

func (e *Engine) storeActivity(a Activity, cfg ActivityConfig) error {
	if a.String() == "unknown" {
		return fmt.Errorf("credits: %w: unknown activity %d", coreerrors.ErrInvalidArgument, a)
	}
	if err := positive(cfg.Reward, "activity reward"); err != nil {
		return err
	}
	return e.state.KVPut(activityConfigKey(a), &ActivityConfig{Reward: new(big.Int).Set(cfg.Reward), Cooldown: cfg.Cooldown, DailyCap: cfg.DailyCap})
}

// Package returns a bundle by id.
func (e *Engine) Package(id uint32) (*Package, error) {
	if e.state == nil {
		return nil, errNilState
	}
	pkg := new(Package)
	ok, err := e.state.KVGet(packageKey(id), pkg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("credits: %w: package %d", coreerrors.ErrNotFound, id)
	}
	return pkg, nil
}

// Packages lists every bundle, inactive ones included, by id.
func (e *Engine) Packages() ([]Package, error) {
	if e.state == nil {
		return nil, errNilState
	}
	count, err := state.LoadUint64(e.state, packageSequenceKey())
	if err != nil {
		return nil, err
	}
	out := make([]Package, 0, count)
	for id := uint64(1); id <= count; id++ {
		pkg, err := e.Package(uint32(id))
		if err != nil {
			return nil, err
		}
		out = append(out, *pkg)
	}
	return out, nil
}

func validPackage(credits, price, bonus *big.Int) error {
	if err := positive(credits, "package credits"); err != nil {
		return err
	}
	if err := positive(price, "package price"); err != nil {
		return err
	}
	if bonus != nil && bonus.Sign() < 0 {
		return fmt.Errorf("credits: %w: package bonus must not be negative", coreerrors.ErrInvalidArgument)
	}
	return nil
}

func (e *Engine) addPackage(credits, price, bonus *big.Int) (*Package, error) {
	if err := validPackage(credits, price, bonus); err != nil {
		return nil, err
	}
	id, err := state.NextSequence(e.state, packageSequenceKey())
	if err != nil {
		return nil, err
	}
	pkg := &Package{
		ID:      uint32(id),
		Credits: new(big.Int).Set(credits),
		Price:   new(big.Int).Set(price),
		Bonus:   nonNegative(bonus),
		Active:  true,
	}
	if err := e.state.KVPut(packageKey(pkg.ID), pkg); err != nil {
		return nil, err
	}
	e.emitter.Emit(PackageChanged{Package: *pkg})
	return pkg, nil
}

// CreatePackage adds an active bundle under the next id.
func (e *Engine) CreatePackage(caller [20]byte, credits, price, bonus *big.Int) (*Package, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	return e.addPackage(credits, price, bonus)
}

// UpdatePackage rewrites a bundle. Deactivated bundles cannot be bought.
func (e *Engine) UpdatePackage(caller [20]byte, id uint32, credits, price, bonus *big.Int, active bool) (*Package, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := validPackage(credits, price, bonus); err != nil {
		return nil, err
	}
	pkg, err := e.Package(id)
	if err != nil {
		return nil, err
	}
	pkg.Credits, pkg.Price, pkg.Bonus, pkg.Active = new(big.Int).Set(credits), new(big.Int).Set(price), nonNegative(bonus), active
	if err := e.state.KVPut(packageKey(id), pkg); err != nil {
		return nil, err
	}
	e.emitter.Emit(PackageChanged{Package: *pkg})
	return pkg, nil
}

// SetActivity replaces an activity's reward settings.
func (e *Engine) SetActivity(caller [20]byte, a Activity, cfg ActivityConfig) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return err
	}
	return e.storeActivity(a, cfg)
}

// SetLimits replaces the issuance limits.
func (e *Engine) SetLimits(caller [20]byte, l Limits) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return err
	}
	return e.storeLimits(l)
}

// issue credits amount to to. Minter-driven issuance also counts against
// the user's daily mint window; purchases only respect the supply cap.
func (e *Engine) issue(to [20]byte, amount *big.Int, windowed bool, source string) error {
	limits, err := e.Limits()
	if err != nil {
		return err
	}
	supply, err := e.Supply()
	if err != nil {
		return err
	}
	next := new(big.Int).Add(supply, amount)
	if max := limits.MaxSupply; max != nil && max.Sign() > 0 && next.Cmp(max) > 0 {
		return fmt.Errorf("credits: %w: max supply %s", coreerrors.ErrCapacityExceeded, max)
	}
	if windowed {
		var prev storedWindow
		if _, err := e.state.KVGet(mintWindowKey(to), &prev); err != nil {
			return err
		}
		usage, err := common.CheckWindow(limits.DailyMintLimit, common.WindowID(e.nowFn(), daySeconds),
			common.WindowUsage{WindowID: prev.WindowID, Used: prev.Used}, amount)
		if err != nil {
			return fmt.Errorf("credits: %w: daily mint limit %s for %s", coreerrors.ErrCapacityExceeded, limits.DailyMintLimit, crypto.FormatPrincipal(to))
		}
		if err := e.state.KVPut(mintWindowKey(to), storedWindow{WindowID: usage.WindowID, Used: usage.Used}); err != nil {
			return err
		}
	}
	acc, err := e.Account(to)
	if err != nil {
		return err
	}
	acc.Balance.Add(acc.Balance, amount)
	acc.LifetimeEarned.Add(acc.LifetimeEarned, amount)
	acc.LastActivity = uint64(e.nowFn())
	if err := e.state.KVPut(accountKey(to), acc); err != nil {
		return err
	}
	if err := state.StoreBig(e.state, supplyKey(), next); err != nil {
		return err
	}
	e.emitter.Emit(Issued{To: to, Amount: new(big.Int).Set(amount), Source: source})
	return nil
}

// RewardActivity credits user the configured reward for an activity. The
// activity's cooldown and daily cap apply per user; days are UTC.
func (e *Engine) RewardActivity(minter, user [20]byte, a Activity) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.Require(roles.RoleMinter, minter); err != nil {
		return nil, err
	}
	cfg, err := e.ActivityConfig(a)
	if err != nil {
		return nil, err
	}
	now := uint64(e.nowFn())
	var st activityState
	seen, err := e.state.KVGet(activityKey(a, user), &st)
	if err != nil {
		return nil, err
	}
	if seen && cfg.Cooldown > 0 && now < st.LastAt+cfg.Cooldown {
		return nil, fmt.Errorf("credits: %w: %s cooldown until %d", coreerrors.ErrDeadlineExceeded, a, st.LastAt+cfg.Cooldown)
	}
	day := now / daySeconds
	if st.Day != day {
		st.Day, st.Count = day, 0
	}
	if cfg.DailyCap > 0 && st.Count >= cfg.DailyCap {
		return nil, fmt.Errorf("credits: %w: %s daily cap %d reached", coreerrors.ErrCapacityExceeded, a, cfg.DailyCap)
	}
	if err := e.issue(user, cfg.Reward, true, "activity:"+a.String()); err != nil {
		return nil, err
	}
	st.LastAt = now
	st.Count++
	if err := e.state.KVPut(activityKey(a, user), &st); err != nil {
		return nil, err
	}
	return new(big.Int).Set(cfg.Reward), nil
}

// AwardCredits lets a minter grant credits directly, subject to the supply
// cap and the user's daily mint window.
func (e *Engine) AwardCredits(minter, user [20]byte, amount *big.Int, reason string) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := e.roles.Require(roles.RoleMinter, minter); err != nil {
		return err
	}
	if err := positive(amount, "award"); err != nil {
		return err
	}
	source := "award"
	if reason = strings.TrimSpace(reason); reason != "" {
		source += ":" + reason
	}
	return e.issue(user, amount, true, source)
}

// BuyCredits charges buyer the package price in the payment token, sends it
// to the treasury and credits the bundle plus its bonus.
func (e *Engine) BuyCredits(buyer [20]byte, packageID uint32) (*Package, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if e.assets == nil {
		return nil, errNilAssets
	}
	if e.treasury == nil {
		return nil, errNilTreasury
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	pkg, err := e.Package(packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, fmt.Errorf("credits: %w: package %d is inactive", coreerrors.ErrInvalidArgument, packageID)
	}
	token, err := e.PaymentToken()
	if err != nil {
		return nil, err
	}
	total := pkg.Total()
	if err := e.issue(buyer, total, false, "purchase:"+strconv.FormatUint(uint64(packageID), 10)); err != nil {
		return nil, err
	}
	if err := e.assets.Transfer(token, buyer, e.treasury.Address(), pkg.Price); err != nil {
		return nil, err
	}
	if err := e.treasury.Credit(token, pkg.Price); err != nil {
		return nil, err
	}
	e.emitter.Emit(Purchased{Buyer: buyer, PackageID: packageID, Token: token, Paid: new(big.Int).Set(pkg.Price), Credits: total})
	return pkg, nil
}

func (e *Engine) debit(who [20]byte, amount *big.Int, spent bool) error {
	acc, err := e.Account(who)
	if err != nil {
		return err
	}
	if acc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("credits: %w: %s has %s, needs %s", coreerrors.ErrInsufficientBalance, crypto.FormatPrincipal(who), acc.Balance, amount)
	}
	acc.Balance.Sub(acc.Balance, amount)
	if spent {
		acc.LifetimeSpent.Add(acc.LifetimeSpent, amount)
	}
	acc.LastActivity = uint64(e.nowFn())
	return e.state.KVPut(accountKey(who), acc)
}

func (e *Engine) shrinkSupply(amount *big.Int) error {
	supply, err := e.Supply()
	if err != nil {
		return err
	}
	return state.StoreBig(e.state, supplyKey(), supply.Sub(supply, amount))
}

// SpendCredits consumes user's credits for compute or in-arcade purchases.
// Spent credits leave the supply.
func (e *Engine) SpendCredits(user [20]byte, amount *big.Int, purpose string) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := positive(amount, "spend"); err != nil {
		return err
	}
	if err := e.debit(user, amount, true); err != nil {
		return err
	}
	if err := e.shrinkSupply(amount); err != nil {
		return err
	}
	e.emitter.Emit(Spent{From: user, Amount: new(big.Int).Set(amount), Purpose: strings.TrimSpace(purpose)})
	return nil
}

// TransferCredits moves credits between users.
func (e *Engine) TransferCredits(from, to [20]byte, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := positive(amount, "transfer"); err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("credits: %w: cannot transfer to self", coreerrors.ErrInvalidArgument)
	}
	if err := e.debit(from, amount, false); err != nil {
		return err
	}
	acc, err := e.Account(to)
	if err != nil {
		return err
	}
	acc.Balance.Add(acc.Balance, amount)
	if err := e.state.KVPut(accountKey(to), acc); err != nil {
		return err
	}
	e.emitter.Emit(Transferred{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// BurnCredits destroys a user's credits. Only burner keys may call it.
func (e *Engine) BurnCredits(burner, user [20]byte, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := e.roles.Require(roles.RoleBurner, burner); err != nil {
		return err
	}
	if err := positive(amount, "burn"); err != nil {
		return err
	}
	if err := e.debit(user, amount, false); err != nil {
		return err
	}
	if err := e.shrinkSupply(amount); err != nil {
		return err
	}
	e.emitter.Emit(Burned{From: user, Amount: new(big.Int).Set(amount), By: burner})
	return nil
}

// Grant adds a minter or burner key.
func (e *Engine) Grant(caller [20]byte, role string, key [20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := checkRole(role); err != nil {
		return err
	}
	return e.roles.Grant(caller, role, key)
}

// Revoke removes a minter or burner key.
func (e *Engine) Revoke(caller [20]byte, role string, key [20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := checkRole(role); err != nil {
		return err
	}
	return e.roles.Revoke(caller, role, key)
}

func checkRole(role string) error {
	switch role {
	case roles.RoleMinter, roles.RoleBurner:
		return nil
	default:
		return fmt.Errorf("credits: %w: role %q is not managed here", coreerrors.ErrInvalidArgument, role)
	}
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
