package directory

import (
	"github.com/ayo6706/retail-ledger/internal/domain"
)

// AmountRange is an inclusive bound on a payment amount.
type AmountRange struct {
	Min domain.Amount `json:"min"`
	Max domain.Amount `json:"max"`
}

func (r AmountRange) Contains(a domain.Amount) bool {
	return a >= r.Min && a <= r.Max
}

var (
	MobileRange = AmountRange{Min: 100_00, Max: 12_000_00}
	VendorRange = AmountRange{Min: 100_00, Max: 500_000_00}
)

var mobileOperators = []string{"Babline", "MTSha", "MegaFun", "TelePanda", "YotaLike"}

// Provider is a vendor that accepts payments against a fixed-length
// customer account number.
type Provider struct {
	Name          string `json:"name"`
	AccountLength int    `json:"accountLength"`
}

var vendorProviders = []Provider{
	{"RostelCom+", 15},
	{"TV360", 12},
	{"FiberNet", 14},
	{"ZhKH-Service", 20},
	{"UO-Gorod", 18},
	{"DomComfort", 22},
	{"GasEnergy", 22},
	{"CityWater", 18},
	{"UniEdu", 16},
	{"EduCenter+", 16},
	{"GoodHands", 10},
	{"KindKids", 12},
}

func MobileOperators() []string {
	return append([]string(nil), mobileOperators...)
}

func VendorProviders() []Provider {
	return append([]Provider(nil), vendorProviders...)
}

func ValidateMobileOperator(name string) error {
	for _, op := range mobileOperators {
		if op == name {
			return nil
		}
	}
	return domain.ErrOperatorNotSupported
}

// ValidateVendorAccount checks the provider exists and the customer account
// has the provider's length.
func ValidateVendorAccount(provider, account string) error {
	for _, p := range vendorProviders {
		if p.Name != provider {
			continue
		}
		if len(account) != p.AccountLength {
			return domain.ErrPaymentAccountLength
		}
		return nil
	}
	return domain.ErrProviderNotSupported
}
