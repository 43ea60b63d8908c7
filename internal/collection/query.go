package collection

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// SortKey orders query results.
type SortKey string

// Sort keys. SortNone keeps collection order.
const (
	SortNone   SortKey = ""
	SortName   SortKey = "name"
	SortRating SortKey = "rating"
	SortStock  SortKey = "stock"
	SortRecent SortKey = "recent"
)

// SortKeys lists the selectable sort keys.
var SortKeys = []SortKey{SortName, SortRating, SortStock, SortRecent}

// ParseSortKey returns the SortKey named by s. An empty s is SortNone.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if k == SortNone || slices.Contains(SortKeys, k) {
		return k, nil
	}
	return SortNone, fmt.Errorf("unknown sort key %q", s)
}

// Query filters and orders the collection. Zero fields match everything.
type Query struct {
	// Text matches a case-insensitive substring of name or brand.
	Text string
	// Types keeps teas whose type is in the set.
	Types []types.TeaType
	// Flavors keeps teas carrying every listed flavor tag.
	Flavors   []types.FlavorProfile
	MinRating float64
	LowStock  bool
	Sort      SortKey
}

// Match reports whether t passes the query's filters.
func (q Query) Match(t *types.Tea) bool {
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		if !strings.Contains(strings.ToLower(t.Name), needle) &&
			!strings.Contains(strings.ToLower(t.Brand), needle) {
			return false
		}
	}
	if len(q.Types) > 0 && !slices.Contains(q.Types, t.Type) {
		return false
	}
	for _, f := range q.Flavors {
		if !t.HasFlavor(f) {
			return false
		}
	}
	if t.Rating < q.MinRating {
		return false
	}
	if q.LowStock && !t.IsLowStock() {
		return false
	}
	return true
}

// Apply returns the teas matching q in q.Sort order. The sort is stable.
func (q Query) Apply(teas []types.Tea) []types.Tea {
	out := []types.Tea{}
	for i := range teas {
		if q.Match(&teas[i]) {
			out = append(out, teas[i])
		}
	}

	switch q.Sort {
	case SortName:
		slices.SortStableFunc(out, func(a, b types.Tea) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	case SortRating:
		slices.SortStableFunc(out, func(a, b types.Tea) int {
			return cmp.Compare(b.Rating, a.Rating)
		})
	case SortStock:
		slices.SortStableFunc(out, func(a, b types.Tea) int {
			return cmp.Compare(a.Amount, b.Amount)
		})
	case SortRecent:
		slices.SortStableFunc(out, func(a, b types.Tea) int {
			return compareRecent(&a, &b)
		})
	}
	return out
}

// compareRecent orders the most recently brewed first; never-brewed teas
// go last.
func compareRecent(a, b *types.Tea) int {
	at, aok := a.LastBrewedAt()
	bt, bok := b.LastBrewedAt()
	switch {
	case aok && bok:
		return bt.Compare(at)
	case aok:
		return -1
	case bok:
		return 1
	default:
		return 0
	}
}

// Find returns the teas matching q.
func (s *Service) Find(q Query) ([]types.Tea, error) {
	teas, err := s.List()
	if err != nil {
		return nil, err
	}
	return q.Apply(teas), nil
}

// ShoppingList returns the low-stock teas, most depleted first by
// amount-to-threshold ratio.
func ShoppingList(teas []types.Tea) []types.Tea {
	out := Query{LowStock: true}.Apply(teas)
	slices.SortStableFunc(out, func(a, b types.Tea) int {
		return cmp.Compare(a.StockRatio(), b.StockRatio())
	})
	return out
}

// Overview summarizes the collection.
type Overview struct {
	Total     int                   `json:"total"`
	LowStock  int                   `json:"lowStock"`
	Favorites int                   `json:"favorites"`
	ByType    map[types.TeaType]int `json:"byType"`
}

// Summarize counts teas by type, low stock, and membership in favorites.
// Types with no teas are omitted from ByType.
func Summarize(teas []types.Tea, favorites []string) Overview {
	o := Overview{Total: len(teas), ByType: map[types.TeaType]int{}}
	for i := range teas {
		t := &teas[i]
		if t.IsLowStock() {
			o.LowStock++
		}
		if slices.Contains(favorites, t.ID) {
			o.Favorites++
		}
		o.ByType[t.Type]++
	}
	return o
}

// Insight limits.
const (
	insightLimit    = 3
	forgottenAfter  = 30 * 24 * time.Hour
	highlyRatedFrom = 4.5
)

// Insights are brewing recommendations.
type Insights struct {
	// Unbrewed teas have never been brewed.
	Unbrewed []types.Tea `json:"unbrewed"`
	// Forgotten teas were last brewed more than 30 days ago.
	Forgotten []types.Tea `json:"forgotten"`
	// HighlyRated teas are rated 4.5 or better, best first.
	HighlyRated []types.Tea `json:"highlyRated"`
}

// Recommend picks up to three teas for each insight as of now.
func Recommend(teas []types.Tea, now time.Time) Insights {
	in := Insights{
		Unbrewed:    []types.Tea{},
		Forgotten:   []types.Tea{},
		HighlyRated: []types.Tea{},
	}
	cutoff := now.Add(-forgottenAfter)
	for i := range teas {
		t := &teas[i]
		at, brewed := t.LastBrewedAt()
		if t.LastBrewed == "" {
			in.Unbrewed = appendCapped(in.Unbrewed, *t)
		} else if brewed && at.Before(cutoff) {
			in.Forgotten = appendCapped(in.Forgotten, *t)
		}
	}
	rated := Query{MinRating: highlyRatedFrom, Sort: SortRating}.Apply(teas)
	for _, t := range rated {
		in.HighlyRated = appendCapped(in.HighlyRated, t)
	}
	return in
}

func appendCapped(list []types.Tea, t types.Tea) []types.Tea {
	if len(list) >= insightLimit {
		return list
	}
	return append(list, t)
}

// ShoppingList returns the service's low-stock teas, most depleted first.
func (s *Service) ShoppingList() ([]types.Tea, error) {
	teas, err := s.List()
	if err != nil {
		return nil, err
	}
	return ShoppingList(teas), nil
}

// Overview summarizes the collection against the given favorite ids.
func (s *Service) Overview(favorites []string) (Overview, error) {
	teas, err := s.List()
	if err != nil {
		return Overview{}, err
	}
	return Summarize(teas, favorites), nil
}

// Insights returns brewing recommendations as of the service clock.
func (s *Service) Insights() (Insights, error) {
	teas, err := s.List()
	if err != nil {
		return Insights{}, err
	}
	return Recommend(teas, s.now()), nil
}
