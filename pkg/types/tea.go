// Tea entity, its enumerations, and inventory helpers.
package types

import (
	"math"
	"time"
)

// TeaType is the botanical or blend category of a tea.
type TeaType string

// Tea types.
const (
	TeaTypeBlack   TeaType = "Black"
	TeaTypeGreen   TeaType = "Green"
	TeaTypeWhite   TeaType = "White"
	TeaTypeOolong  TeaType = "Oolong"
	TeaTypeHerbal  TeaType = "Herbal"
	TeaTypeRooibos TeaType = "Rooibos"
	TeaTypePuerh   TeaType = "Pu-erh"
	TeaTypeYellow  TeaType = "Yellow"
	TeaTypeBlend   TeaType = "Blend"
	TeaTypeOther   TeaType = "Other"
)

// TeaTypes lists every tea type in display order.
var TeaTypes = []TeaType{
	TeaTypeBlack,
	TeaTypeGreen,
	TeaTypeWhite,
	TeaTypeOolong,
	TeaTypeHerbal,
	TeaTypeRooibos,
	TeaTypePuerh,
	TeaTypeYellow,
	TeaTypeBlend,
	TeaTypeOther,
}

// TeaForm is how the tea is packaged.
type TeaForm string

// Tea forms.
const (
	TeaFormLooseLeaf TeaForm = "Loose Leaf"
	TeaFormBagged    TeaForm = "Bagged"
)

// TeaForms lists every tea form.
var TeaForms = []TeaForm{TeaFormLooseLeaf, TeaFormBagged}

// Unit measures the stock amount of a tea.
type Unit string

// Stock units.
const (
	UnitGrams  Unit = "g"
	UnitOunces Unit = "oz"
	UnitBags   Unit = "bags"
	UnitPieces Unit = "pieces"
)

// Units lists every stock unit.
var Units = []Unit{UnitGrams, UnitOunces, UnitBags, UnitPieces}

// TemperatureUnit tags a brewing temperature.
type TemperatureUnit string

// Temperature units.
const (
	Celsius    TemperatureUnit = "C"
	Fahrenheit TemperatureUnit = "F"
)

// TemperatureUnits lists every temperature unit.
var TemperatureUnits = []TemperatureUnit{Celsius, Fahrenheit}

// CaffeineLevel is a coarse caffeine classification.
type CaffeineLevel string

// Caffeine levels.
const (
	CaffeineNone   CaffeineLevel = "None"
	CaffeineLow    CaffeineLevel = "Low"
	CaffeineMedium CaffeineLevel = "Medium"
	CaffeineHigh   CaffeineLevel = "High"
)

// CaffeineLevels lists every caffeine level.
var CaffeineLevels = []CaffeineLevel{CaffeineNone, CaffeineLow, CaffeineMedium, CaffeineHigh}

// FlavorProfile is a tasting tag. A tea's tags form an unordered set.
type FlavorProfile string

// Flavor profiles.
const (
	FlavorFloral  FlavorProfile = "Floral"
	FlavorFruity  FlavorProfile = "Fruity"
	FlavorVegetal FlavorProfile = "Vegetal"
	FlavorNutty   FlavorProfile = "Nutty"
	FlavorSpicy   FlavorProfile = "Spicy"
	FlavorSweet   FlavorProfile = "Sweet"
	FlavorEarthy  FlavorProfile = "Earthy"
	FlavorMineral FlavorProfile = "Mineral"
	FlavorRoasted FlavorProfile = "Roasted"
	FlavorCitrus  FlavorProfile = "Citrus"
)

// FlavorProfiles lists every flavor profile.
var FlavorProfiles = []FlavorProfile{
	FlavorFloral,
	FlavorFruity,
	FlavorVegetal,
	FlavorNutty,
	FlavorSpicy,
	FlavorSweet,
	FlavorEarthy,
	FlavorMineral,
	FlavorRoasted,
	FlavorCitrus,
}

// TimestampLayout is the ISO-8601 layout used for brew timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DateLayout is the ISO-8601 layout used for purchase dates.
const DateLayout = "2006-01-02"

// BrewingInstructions describes how to steep a tea.
type BrewingInstructions struct {
	Temperature        float64         `json:"temperature"`
	TempUnit           TemperatureUnit `json:"tempUnit"`
	SteepTimeInSeconds int             `json:"steepTimeInSeconds"`
}

// BrewingHistory is one completed brew. Entries are append-only.
type BrewingHistory struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Unit   Unit    `json:"unit"`
}

// Tea is a single catalog entry. ID is immutable after creation.
// JSON field names match the legacy and import file format.
type Tea struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Brand               string              `json:"brand"`
	Type                TeaType             `json:"type"`
	Form                TeaForm             `json:"form"`
	Amount              float64             `json:"amount"`
	Unit                Unit                `json:"unit"`
	Rating              float64             `json:"rating"`
	TastingNotes        string              `json:"tastingNotes"`
	BrewingInstructions BrewingInstructions `json:"brewingInstructions"`

	Origin            string           `json:"origin,omitempty"`
	PurchaseDate      string           `json:"purchaseDate,omitempty"`
	ImageURL          string           `json:"imageUrl,omitempty"`
	Price             *float64         `json:"price,omitempty"`
	Currency          string           `json:"currency,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	Ingredients       []string         `json:"ingredients,omitempty"`
	Organic           *bool            `json:"organic,omitempty"`
	CaffeineLevel     CaffeineLevel    `json:"caffeineLevel,omitempty"`
	FlavorTags        []FlavorProfile  `json:"flavorTags,omitempty"`
	BrewingHistory    []BrewingHistory `json:"brewingHistory,omitempty"`
	TotalBrewCount    int              `json:"totalBrewCount,omitempty"`
	LastBrewed        string           `json:"lastBrewed,omitempty"`
	LowStockThreshold *float64         `json:"lowStockThreshold,omitempty"`
}

// IsLowStock reports whether the remaining amount is at or below the
// tea's low-stock threshold. A missing or zero threshold never alerts.
func (t *Tea) IsLowStock() bool {
	if t.LowStockThreshold == nil || *t.LowStockThreshold <= 0 {
		return false
	}
	return t.Amount <= *t.LowStockThreshold
}

// StockRatio returns amount divided by threshold, used to order a shopping
// list from most to least urgent. Teas without a threshold return +Inf.
func (t *Tea) StockRatio() float64 {
	if t.LowStockThreshold == nil || *t.LowStockThreshold <= 0 {
		return math.Inf(1)
	}
	return t.Amount / *t.LowStockThreshold
}

// HasFlavor reports whether tag is in the tea's flavor set.
func (t *Tea) HasFlavor(tag FlavorProfile) bool {
	for _, f := range t.FlavorTags {
		if f == tag {
			return true
		}
	}
	return false
}

// RecordBrew appends a brewing history entry for amount consumed at the
// given instant, decrements stock (never below zero), bumps the brew count,
// and mirrors the entry timestamp into LastBrewed.
// Returns ErrInvalidAmount if amount is negative or not a number.
func (t *Tea) RecordBrew(amount float64, at time.Time) (BrewingHistory, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return BrewingHistory{}, ErrInvalidAmount
	}
	entry := BrewingHistory{
		Date:   at.UTC().Format(TimestampLayout),
		Amount: amount,
		Unit:   t.Unit,
	}
	t.Amount = math.Max(0, t.Amount-amount)
	t.BrewingHistory = append(t.BrewingHistory, entry)
	t.TotalBrewCount++
	t.LastBrewed = entry.Date
	return entry, nil
}

// LastBrewedAt parses LastBrewed. ok is false when the tea was never brewed
// or the stored value is not a valid timestamp.
func (t *Tea) LastBrewedAt() (at time.Time, ok bool) {
	if t.LastBrewed == "" {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, t.LastBrewed)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, for optional boolean fields.
func Bool(v bool) *bool { return &v }
