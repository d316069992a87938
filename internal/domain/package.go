package domain

import "github.com/shopspring/decimal"

// CreditPackage is a static catalog entry. Packages are reference data shipped
// with the binary, not user-owned rows.
type CreditPackage struct {
	ID           string
	Name         string
	Credits      int
	BonusCredits int
	PriceEur     decimal.Decimal
}

// TotalCredits is what the buyer actually receives.
func (p CreditPackage) TotalCredits() int {
	return p.Credits + p.BonusCredits
}

var creditPackages = []CreditPackage{
	{ID: "starter", Name: "Starter", Credits: 10, BonusCredits: 0, PriceEur: decimal.New(499, -2)},
	{ID: "seeker", Name: "Seeker", Credits: 25, BonusCredits: 3, PriceEur: decimal.New(999, -2)},
	{ID: "mystic", Name: "Mystic", Credits: 60, BonusCredits: 10, PriceEur: decimal.New(1999, -2)},
	{ID: "oracle", Name: "Oracle", Credits: 150, BonusCredits: 35, PriceEur: decimal.New(3999, -2)},
}

func CreditPackages() []CreditPackage {
	packages := make([]CreditPackage, len(creditPackages))
	copy(packages, creditPackages)
	return packages
}

func CreditPackageById(id string) (CreditPackage, error) {
	for _, p := range creditPackages {
		if p.ID == id {
			return p, nil
		}
	}

	return CreditPackage{}, ErrInvalidPackage
}
