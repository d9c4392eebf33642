package credits

import (
	"math/big"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeIssued         = "credits.issued"
	TypeSpent          = "credits.spent"
	TypeTransferred    = "credits.transferred"
	TypeBurned         = "credits.burned"
	TypePurchased      = "credits.purchased"
	TypePackageChanged = "credits.package_changed"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Issued covers activity rewards, awards and purchases. Source names which.
type Issued struct {
	To     [20]byte
	Amount *big.Int
	Source string
}

func (Issued) EventType() string { return TypeIssued }

func (e Issued) Event() *types.Event {
	return &types.Event{Type: TypeIssued, Attributes: map[string]string{
		"to":     crypto.FormatPrincipal(e.To),
		"amount": amountString(e.Amount),
		"source": e.Source,
	}}
}

type Spent struct {
	From    [20]byte
	Amount  *big.Int
	Purpose string
}

func (Spent) EventType() string { return TypeSpent }

func (e Spent) Event() *types.Event {
	return &types.Event{Type: TypeSpent, Attributes: map[string]string{
		"from":    crypto.FormatPrincipal(e.From),
		"amount":  amountString(e.Amount),
		"purpose": e.Purpose,
	}}
}

type Transferred struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transferred) EventType() string { return TypeTransferred }

func (e Transferred) Event() *types.Event {
	return &types.Event{Type: TypeTransferred, Attributes: map[string]string{
		"from":   crypto.FormatPrincipal(e.From),
		"to":     crypto.FormatPrincipal(e.To),
		"amount": amountString(e.Amount),
	}}
}

type Burned struct {
	From   [20]byte
	Amount *big.Int
	By     [20]byte
}

func (Burned) EventType() string { return TypeBurned }

func (e Burned) Event() *types.Event {
	return &types.Event{Type: TypeBurned, Attributes: map[string]string{
		"from":   crypto.FormatPrincipal(e.From),
		"amount": amountString(e.Amount),
		"by":     crypto.FormatPrincipal(e.By),
	}}
}

type Purchased struct {
	Buyer     [20]byte
	PackageID uint32
	Token     string
	Paid      *big.Int
	Credits   *big.Int
}

func (Purchased) EventType() string { return TypePurchased }

func (e Purchased) Event() *types.Event {
	return &types.Event{Type: TypePurchased, Attributes: map[string]string{
		"buyer":   crypto.FormatPrincipal(e.Buyer),
		"package": strconv.FormatUint(uint64(e.PackageID), 10),
		"token":   e.Token,
		"paid":    amountString(e.Paid),
		"credits": amountString(e.Credits),
	}}
}

type PackageChanged struct {
	Package Package
}

func (PackageChanged) EventType() string { return TypePackageChanged }

func (e PackageChanged) Event() *types.Event {
	return &types.Event{Type: TypePackageChanged, Attributes: map[string]string{
		"package": strconv.FormatUint(uint64(e.Package.ID), 10),
		"credits": amountString(e.Package.Credits),
		"price":   amountString(e.Package.Price),
		"bonus":   amountString(e.Package.Bonus),
		"active":  strconv.FormatBool(e.Package.Active),
	}}
}
