package collection

import "github.com/mesh-intelligence/teashelf/pkg/types"

// SampleTeas returns the starter collection offered to a new user, with
// fresh ids from newID.
func SampleTeas(newID IDProvider) ([]types.Tea, error) {
	teas := []types.Tea{
		{
			Name:         "Earl Grey Supreme",
			Brand:        "Harney & Sons",
			Type:         types.TeaTypeBlack,
			Form:         types.TeaFormLooseLeaf,
			Amount:       100,
			Unit:         types.UnitGrams,
			Rating:       4.5,
			TastingNotes: "Citrusy bergamot with light floral notes. Smooth with minimal astringency.",
			BrewingInstructions: types.BrewingInstructions{
				Temperature:        95,
				TempUnit:           types.Celsius,
				SteepTimeInSeconds: 240,
			},
			Origin:        "China/India/Sri Lanka Blend",
			PurchaseDate:  "2023-06-15",
			Price:         types.Float(15.99),
			Currency:      "USD",
			Notes:         "A favorite morning tea. Good with milk.",
			Ingredients:   []string{"Black tea", "Bergamot oil"},
			Organic:       types.Bool(false),
			CaffeineLevel: types.CaffeineMedium,
		},
		{
			Name:         "Jasmine Dragon Pearls",
			Brand:        "Teavana",
			Type:         types.TeaTypeGreen,
			Form:         types.TeaFormLooseLeaf,
			Amount:       50,
			Unit:         types.UnitGrams,
			Rating:       5,
			TastingNotes: "Strong jasmine aroma, sweet and floral taste with a smooth finish.",
			BrewingInstructions: types.BrewingInstructions{
				Temperature:        80,
				TempUnit:           types.Celsius,
				SteepTimeInSeconds: 180,
			},
			Origin:        "Fujian, China",
			PurchaseDate:  "2023-05-20",
			Price:         types.Float(24.99),
			Currency:      "USD",
			Notes:         "Can be steeped multiple times. Gets better with each steep.",
			Ingredients:   []string{"Green tea", "Jasmine flowers"},
			Organic:       types.Bool(true),
			CaffeineLevel: types.CaffeineLow,
		},
		{
			Name:         "Sleepytime",
			Brand:        "Celestial Seasonings",
			Type:         types.TeaTypeHerbal,
			Form:         types.TeaFormBagged,
			Amount:       20,
			Unit:         types.UnitBags,
			Rating:       3.5,
			TastingNotes: "Mild mint with chamomile. Slightly sweet and very soothing.",
			BrewingInstructions: types.BrewingInstructions{
				Temperature:        100,
				TempUnit:           types.Celsius,
				SteepTimeInSeconds: 300,
			},
			Origin:       "United States",
			PurchaseDate: "2023-07-01",
			Price:        types.Float(4.99),
			Currency:     "USD",
			Notes:        "Good before bed. No caffeine.",
			Ingredients: []string{
				"Chamomile", "Spearmint", "Lemongrass", "Tilia Flowers",
				"Blackberry Leaves", "Orange Blossoms", "Hawthorn", "Rosebuds",
			},
			Organic:       types.Bool(false),
			CaffeineLevel: types.CaffeineNone,
		},
	}
	for i := range teas {
		id, err := newID()
		if err != nil {
			return nil, err
		}
		teas[i].ID = id
	}
	return teas, nil
}
