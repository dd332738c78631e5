package plans

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("plan not found")

type ID string

const (
	Free    ID = "free"
	Basic   ID = "basic"
	Pro     ID = "pro"
	Premium ID = "premium"
)

type Interval string

const (
	Monthly Interval = "month"
	Yearly  Interval = "year"
)

// Money is an amount in the smallest currency unit.
type Money struct {
	Amount   int64
	Currency string
}

// Decimal renders the amount with two fraction digits, e.g. "9.99".
func (m Money) Decimal() string {
	sign := ""
	a := m.Amount
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d", sign, a/100, a%100)
}

// Definition describes a plan and what it unlocks.
type Definition struct {
	ID            ID
	Name          string
	PropertyLimit Limit
	MonthlyPrice  Money
	YearlyPrice   Money
}

// Price returns the price for the given billing interval, defaulting to monthly.
func (d Definition) Price(interval Interval) Money {
	if interval == Yearly {
		return d.YearlyPrice
	}
	return d.MonthlyPrice
}

// Catalog is the read-only plan table of one deployment.
type Catalog struct {
	byID  map[ID]Definition
	order []ID
}

// NewCatalog builds the deployment catalog priced in the given currency.
func NewCatalog(currency string) *Catalog {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = "USD"
	}
	price := func(minor int64) Money { return Money{Amount: minor, Currency: cur} }

	defs := []Definition{
		{ID: Free, Name: "Free", PropertyLimit: Finite(1), MonthlyPrice: price(0), YearlyPrice: price(0)},
		{ID: Basic, Name: "Basic", PropertyLimit: Finite(5), MonthlyPrice: price(999), YearlyPrice: price(9900)},
		{ID: Pro, Name: "Pro", PropertyLimit: Finite(25), MonthlyPrice: price(2999), YearlyPrice: price(29900)},
		{ID: Premium, Name: "Premium", PropertyLimit: Unlimited(), MonthlyPrice: price(7999), YearlyPrice: price(79900)},
	}

	c := &Catalog{byID: make(map[ID]Definition, len(defs)), order: []ID{Basic, Pro, Premium}}
	for _, d := range defs {
		c.byID[d.ID] = d
	}
	return c
}

// Normalize trims and lowercases a raw plan identifier.
func Normalize(raw string) ID {
	return ID(strings.ToLower(strings.TrimSpace(raw)))
}

func (c *Catalog) Get(planID string) (Definition, error) {
	d, ok := c.byID[Normalize(planID)]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrNotFound, planID)
	}
	return d, nil
}

// List returns the sellable plans in display order. Free is implicit and not listed.
func (c *Catalog) List() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Free() Definition {
	return c.byID[Free]
}

func (c *Catalog) IsSellable(planID string) bool {
	id := Normalize(planID)
	for _, s := range c.order {
		if s == id {
			return true
		}
	}
	return false
}
