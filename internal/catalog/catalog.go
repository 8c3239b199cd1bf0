// Package catalog holds the static product list the storefront sells.
//
// A Catalog is built once from configuration and never mutated afterwards, so
// it is safe for concurrent use without locking.
package catalog

import (
	"fmt"
	"strings"

	"github.com/m3rciful/starshop/internal/shop"
)

// Kind distinguishes one-time purchases from annual subscriptions.
type Kind string

const (
	KindOneTime      Kind = "one_time"
	KindSubscription Kind = "subscription"
)

// Product is a sellable catalog item. Price is in stars.
type Product struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Emoji       string `yaml:"emoji"`
	Price       int64  `yaml:"price"`
	Kind        Kind   `yaml:"kind"`
}

// IsSubscription reports whether the product is an annual subscription.
func (p Product) IsSubscription() bool { return p.Kind == KindSubscription }

// Title renders "<emoji> <name>" trimming the emoji when absent.
func (p Product) Title() string {
	return strings.TrimSpace(p.Emoji + " " + p.Name)
}

// Catalog is an insertion-ordered, read-only product index.
type Catalog struct {
	order []string
	byKey map[string]Product
}

// New validates products and builds a Catalog preserving their order.
func New(products ...Product) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]Product, len(products))}
	for i, p := range products {
		p.Key = strings.TrimSpace(p.Key)
		if p.Key == "" {
			return nil, fmt.Errorf("catalog: product #%d has empty key", i)
		}
		if _, dup := c.byKey[p.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate product key %q", p.Key)
		}
		if p.Price <= 0 {
			return nil, fmt.Errorf("catalog: product %q must have a positive price", p.Key)
		}
		switch p.Kind {
		case "":
			p.Kind = KindOneTime
		case KindOneTime, KindSubscription:
		default:
			return nil, fmt.Errorf("catalog: product %q has invalid kind %q; allowed: one_time, subscription", p.Key, p.Kind)
		}
		if strings.TrimSpace(p.Name) == "" {
			p.Name = p.Key
		}
		c.order = append(c.order, p.Key)
		c.byKey[p.Key] = p
	}
	return c, nil
}

// MustNew is New for statically known products; it panics on invalid input.
func MustNew(products ...Product) *Catalog {
	c, err := New(products...)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.order) }

// Lookup returns the product registered under key.
func (c *Catalog) Lookup(key string) (Product, bool) {
	p, ok := c.byKey[key]
	return p, ok
}

// Products returns every product in configuration order.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.byKey[k])
	}
	return out
}

// ByKind returns the products of the given kind in configuration order.
func (c *Catalog) ByKind(kind Kind) []Product {
	var out []Product
	for _, k := range c.order {
		if p := c.byKey[k]; p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// IsSubscription reports whether key names a subscription product.
func (c *Catalog) IsSubscription(key string) bool {
	p, ok := c.byKey[key]
	return ok && p.IsSubscription()
}

// LineTotal returns unit price times quantity.
func LineTotal(p Product, qty int) int64 {
	return p.Price * int64(qty)
}

// PricedLine is a cart line resolved against the catalog.
type PricedLine struct {
	Product  Product
	Quantity int
	Total    int64
}

// Priced resolves cart lines, silently skipping keys the catalog does not know.
func (c *Catalog) Priced(lines []shop.CartLine) []PricedLine {
	out := make([]PricedLine, 0, len(lines))
	for _, l := range lines {
		p, ok := c.byKey[l.ProductKey]
		if !ok {
			continue
		}
		out = append(out, PricedLine{Product: p, Quantity: l.Quantity, Total: LineTotal(p, l.Quantity)})
	}
	return out
}

// Total sums line totals over known products; unknown keys contribute zero.
func (c *Catalog) Total(lines []shop.CartLine) int64 {
	var total int64
	for _, pl := range c.Priced(lines) {
		total += pl.Total
	}
	return total
}
