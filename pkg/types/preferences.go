package types

// Theme is the UI color scheme.
type Theme string

// Themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DashboardLayout is how the collection is laid out.
type DashboardLayout string

// Dashboard layouts.
const (
	LayoutGrid DashboardLayout = "grid"
	LayoutList DashboardLayout = "list"
)

// UserPreferences are persisted independently of the collection.
// FavoriteTeaIDs is a soft reference: ids of deleted teas are tolerated.
type UserPreferences struct {
	Theme               Theme           `json:"theme"`
	DefaultBrewingTimes map[TeaType]int `json:"defaultBrewingTimes"`
	DashboardLayout     DashboardLayout `json:"dashboardLayout"`
	FavoriteTeaIDs      []string        `json:"favoriteTeaIds"`
}

// DefaultPreferences returns a fresh copy of the default preferences.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Theme: ThemeLight,
		DefaultBrewingTimes: map[TeaType]int{
			TeaTypeBlack:   240,
			TeaTypeGreen:   180,
			TeaTypeWhite:   120,
			TeaTypeOolong:  180,
			TeaTypeHerbal:  300,
			TeaTypeRooibos: 300,
			TeaTypePuerh:   120,
			TeaTypeYellow:  120,
			TeaTypeBlend:   240,
			TeaTypeOther:   180,
		},
		DashboardLayout: LayoutGrid,
		FavoriteTeaIDs:  []string{},
	}
}

// IsFavorite reports whether id is in the favorite set.
func (p *UserPreferences) IsFavorite(id string) bool {
	for _, fav := range p.FavoriteTeaIDs {
		if fav == id {
			return true
		}
	}
	return false
}
