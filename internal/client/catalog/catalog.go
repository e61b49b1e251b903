// Package catalog resolves payment-provider information for stored codes.
// Search consults it so a query like "kbank" also matches records whose code
// carries a provider prefix the user never typed.
package catalog

import (
	"strings"
)

// ProviderInfo describes one known payment provider.
type ProviderInfo struct {
	Code    string
	Name    string
	Aliases []string
}

// Catalog answers provider lookups. Implementations must be safe for
// concurrent use.
type Catalog interface {
	ResolveByCode(code string) (*ProviderInfo, bool)
	ResolveAliases(query string) []string
}

// Static is an immutable in-memory Catalog.
type Static struct {
	byPrefix []ProviderInfo
}

// NewStatic builds a Static catalog from the given providers.
func NewStatic(providers []ProviderInfo) *Static {
	return &Static{byPrefix: providers}
}

// Default returns the built-in provider table.
func Default() *Static {
	return NewStatic([]ProviderInfo{
		{Code: "KBANK", Name: "Kasikorn Bank", Aliases: []string{"kasikorn", "kbank", "k-bank"}},
		{Code: "SCB", Name: "Siam Commercial Bank", Aliases: []string{"siam commercial", "scb"}},
		{Code: "BBL", Name: "Bangkok Bank", Aliases: []string{"bangkok bank", "bbl"}},
		{Code: "SEVEN", Name: "7-Eleven", Aliases: []string{"7-eleven", "seven eleven", "711"}},
		{Code: "LOTUS", Name: "Lotus's", Aliases: []string{"lotus", "tesco"}},
		{Code: "TRUEMONEY", Name: "TrueMoney Wallet", Aliases: []string{"truemoney", "true money", "tmn"}},
		{Code: "LINEPAY", Name: "LINE Pay", Aliases: []string{"line pay", "linepay"}},
	})
}

// ResolveByCode matches a stored record code against the provider table by
// prefix: record codes embed the provider code, e.g. "KBANK-001".
func (s *Static) ResolveByCode(code string) (*ProviderInfo, bool) {
	upper := strings.ToUpper(code)
	for i := range s.byPrefix {
		p := &s.byPrefix[i]
		if upper == p.Code || strings.HasPrefix(upper, p.Code+"-") {
			return p, true
		}
	}
	return nil, false
}

// ResolveAliases returns provider codes whose name or aliases match query
// (case-insensitive substring). Used to widen local search.
func (s *Static) ResolveAliases(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var codes []string
	for i := range s.byPrefix {
		p := &s.byPrefix[i]
		if matchesProvider(p, q) {
			codes = append(codes, p.Code)
		}
	}
	return codes
}

func matchesProvider(p *ProviderInfo, q string) bool {
	if strings.Contains(strings.ToLower(p.Name), q) {
		return true
	}
	for _, alias := range p.Aliases {
		if strings.Contains(alias, q) || strings.Contains(q, alias) {
			return true
		}
	}
	return false
}
