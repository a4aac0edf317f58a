// Package payouts implements HearthForge's ad-revenue payout engine: the
// external-rail catalog cache, the nightly batch split job, and the
// balance reporter (spec.md §4.D–§4.G).
package payouts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hearthforge/backend/internal/cacheutil"
	"github.com/hearthforge/backend/internal/payouts/railclient"
)

// PayoutInterval describes the amount range a PayoutMethod accepts.
type PayoutInterval struct {
	Standard *StandardInterval
	Fixed    []float64 // sorted SKU minimums, alternative to Standard
}

// StandardInterval is a continuous [Min, Max] amount range.
type StandardInterval struct {
	Min float64
	Max float64
}

// Fee is the percentage/min/max fee structure a PayoutMethod charges.
type Fee struct {
	Percentage float64
	Min        float64
	Max        *float64
}

// PayoutMethod is one entry in the cached catalog get_payout_methods()
// returns (spec.md §4.E).
type PayoutMethod struct {
	ID       string
	Name     string
	Type     string // "paypal", "venmo", "tremendous"
	Country  string // "US" or "*" for all-countries entries
	Interval PayoutInterval
	Fee      Fee
}

// tremendousAllowedCategories are the only product categories
// get_payout_methods surfaces; products in any other category are dropped
// (spec.md §4.E step 2).
var tremendousAllowedCategories = map[string]bool{
	"merchant_cards": true, "merchant_card": true, "visa": true,
	"bank": true, "ach": true, "visa_card": true, "charity": true,
}

// tremendousBlacklistedIDs are hardcoded product ids dropped regardless of
// category (spec.md §4.E step 2): physical Visa and crypto/bitcard gift
// cards the platform does not want to surface as a payout method.
var tremendousBlacklistedIDs = map[string]bool{
	"A2J05SWPI2QG": true, // physical visa
	"1UOOSHUUYTAM": true, "5EVJN47HPDFT": true, "NI9M4EVAVGFJ": true, "VLY29QHTMNGT": true,
	"7XU98H109Y3A": true, "0CGEDFP2UIKV": true, "PDYLQU0K073Y": true, "HCS5Z7O2NV5G": true,
	"IY1VMST1MOXS": true, "VRPZLJ7HCA8X": true, // crypto
	"GWQQS5RM8IZS": true, "896MYD4SGOGZ": true, "PWLEN1VZGMZA": true, "A2VRM96J5K5W": true,
	"HV9ICIM3JT7P": true, "K2KLSPVWC2Q4": true, "HRBRQLLTDF95": true, "UUBYLZVK7QAB": true,
	"BH8W3XEDEOJN": true, "7WGE043X1RYQ": true, "2B13MHUZZVTF": true, "JN6R44P86EYX": true,
	"DA8H43GU84SO": true, "QK2XAQHSDEH4": true, "J7K1IQFS76DK": true, "NL4JQ2G7UPRZ": true,
	"OEFTMSBA5ELH": true, "A3CQK6UHNV27": true, // bitcard
}

var tremendousUprankIDs = []string{"ET0ZVETV5ILN", "Q24BD9EZ332JT", "UIL1ZYJU5MKN"}
var tremendousDownrankIDs = []string{"EIPF8Q00EMM1", "OU2MWXYWPNWQ"}

// Catalog caches get_payout_methods()'s result, TTL 6h, refreshed under the
// same single-flight RwLock discipline as the PayPal credential cache
// (spec.md §4.E, §9).
type Catalog struct {
	tremendous *railclient.TremendousClient
	ttl        time.Duration

	mu      sync.RWMutex
	methods []PayoutMethod
	fetched time.Time
}

// NewCatalog wires a Catalog from its Tremendous client and configured TTL.
func NewCatalog(tremendous *railclient.TremendousClient, ttl time.Duration) *Catalog {
	return &Catalog{tremendous: tremendous, ttl: ttl}
}

// Methods returns the cached payout method list, refreshing it if the TTL
// has elapsed.
func (c *Catalog) Methods(ctx context.Context) ([]PayoutMethod, error) {
	return cacheutil.ReadThrough(
		&c.mu,
		func(now time.Time) ([]PayoutMethod, bool) {
			if c.methods != nil && now.Sub(c.fetched) < c.ttl {
				return c.methods, true
			}
			return nil, false
		},
		func(now time.Time) ([]PayoutMethod, error) {
			methods, err := c.refresh(ctx)
			if err != nil {
				return nil, err
			}
			c.methods, c.fetched = methods, now
			return methods, nil
		},
	)
}

func (c *Catalog) refresh(ctx context.Context) ([]PayoutMethod, error) {
	products, err := c.tremendous.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	var methods []PayoutMethod
	for _, p := range products {
		if !tremendousAllowedCategories[p.Category] || tremendousBlacklistedIDs[p.ID] {
			continue
		}

		m := PayoutMethod{ID: p.ID, Name: p.Name, Type: "tremendous"}
		if len(p.Skus) >= 2 {
			mins := make([]float64, 0, len(p.Skus))
			for _, sku := range p.Skus {
				mins = append(mins, sku.Min)
			}
			sort.Float64s(mins)
			m.Interval = PayoutInterval{Fixed: mins}
			if !containsUSD(p.Currencies) {
				continue
			}
		} else if len(p.Skus) == 1 {
			m.Interval = PayoutInterval{Standard: &StandardInterval{Min: p.Skus[0].Min, Max: p.Skus[0].Max}}
		} else {
			m.Interval = PayoutInterval{Standard: &StandardInterval{Min: 0, Max: 5000}}
		}

		if p.Category == "ach" {
			m.Fee = Fee{Percentage: 0.04, Min: 0.25, Max: nil}
		}

		methods = append(methods, m)
	}

	sortCatalog(methods)
	return prependSyntheticMethods(methods), nil
}

func containsUSD(currencies []string) bool {
	for _, c := range currencies {
		if c == "USD" {
			return true
		}
	}
	return false
}

func sortCatalog(methods []PayoutMethod) {
	rank := func(id string) int {
		for _, u := range tremendousUprankIDs {
			if u == id {
				return -1
			}
		}
		for _, d := range tremendousDownrankIDs {
			if d == id {
				return 1
			}
		}
		return 0
	}
	sort.SliceStable(methods, func(i, j int) bool {
		ri, rj := rank(methods[i].ID), rank(methods[j].ID)
		if ri != rj {
			return ri < rj
		}
		return methods[i].Name < methods[j].Name
	})
}

func floatPtr(f float64) *float64 { return &f }

// prependSyntheticMethods inserts PayPal (US), Venmo, and PayPal
// (non-US) at the head of the catalog, in that exact order (spec.md §4.E
// step 5).
func prependSyntheticMethods(rest []PayoutMethod) []PayoutMethod {
	paypalUS := PayoutMethod{
		ID: "paypal-us", Name: "PayPal", Type: "paypal", Country: "US",
		Interval: PayoutInterval{Standard: &StandardInterval{Min: 0.25, Max: 100000}},
		Fee:      Fee{Percentage: 0.02, Min: 0.25, Max: floatPtr(1)},
	}
	venmo := paypalUS
	venmo.ID, venmo.Name, venmo.Type = "venmo-us", "Venmo", "venmo"

	paypalIntl := PayoutMethod{
		ID: "paypal-intl", Name: "PayPal", Type: "paypal", Country: "*",
		Interval: PayoutInterval{Standard: &StandardInterval{Min: 0.25, Max: 100000}},
		Fee:      Fee{Percentage: 0.02, Min: 0, Max: floatPtr(20)},
	}

	return append([]PayoutMethod{paypalUS, venmo, paypalIntl}, rest...)
}
