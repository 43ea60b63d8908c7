package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTea() map[string]any {
	return map[string]any{
		"id":           "t1",
		"name":         "Earl Grey",
		"brand":        "Harney & Sons",
		"type":         "Black",
		"form":         "Loose Leaf",
		"amount":       100.0,
		"unit":         "g",
		"rating":       4.5,
		"tastingNotes": "",
		"brewingInstructions": map[string]any{
			"temperature":        95.0,
			"tempUnit":           "C",
			"steepTimeInSeconds": 240.0,
		},
	}
}

func encode(t *testing.T, obj any) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func TestValidateTea(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(map[string]any)
		wantField string
	}{
		{name: "valid record", mutate: func(map[string]any) {}},
		{name: "missing id", mutate: func(m map[string]any) { delete(m, "id") }, wantField: "id"},
		{name: "numeric name", mutate: func(m map[string]any) { m["name"] = 3 }, wantField: "name"},
		{name: "unknown type", mutate: func(m map[string]any) { m["type"] = "Mate" }, wantField: "type"},
		{name: "unknown form", mutate: func(m map[string]any) { m["form"] = "Brick" }, wantField: "form"},
		{name: "unknown unit", mutate: func(m map[string]any) { m["unit"] = "kg" }, wantField: "unit"},
		{name: "string amount", mutate: func(m map[string]any) { m["amount"] = "100" }, wantField: "amount"},
		{name: "missing brewing", mutate: func(m map[string]any) { delete(m, "brewingInstructions") }, wantField: "brewingInstructions"},
		{
			name: "bad temp unit",
			mutate: func(m map[string]any) {
				m["brewingInstructions"].(map[string]any)["tempUnit"] = "K"
			},
			wantField: "brewingInstructions.tempUnit",
		},
		{
			name: "fractional steep time",
			mutate: func(m map[string]any) {
				m["brewingInstructions"].(map[string]any)["steepTimeInSeconds"] = 90.5
			},
			wantField: "brewingInstructions.steepTimeInSeconds",
		},
		{name: "organic not bool", mutate: func(m map[string]any) { m["organic"] = "yes" }, wantField: "organic"},
		{name: "unknown flavor", mutate: func(m map[string]any) { m["flavorTags"] = []any{"Smoky"} }, wantField: "flavorTags"},
		{name: "bad caffeine", mutate: func(m map[string]any) { m["caffeineLevel"] = "Extreme" }, wantField: "caffeineLevel"},
		{name: "ingredients not strings", mutate: func(m map[string]any) { m["ingredients"] = []any{1} }, wantField: "ingredients"},
		{
			name:      "history entry without unit",
			mutate:    func(m map[string]any) { m["brewingHistory"] = []any{map[string]any{"date": "2026-01-01T00:00:00Z", "amount": 2}} },
			wantField: "brewingHistory.unit",
		},
		{name: "rating out of range is structural ok", mutate: func(m map[string]any) { m["rating"] = 9.0 }},
		{name: "negative amount is structural ok", mutate: func(m map[string]any) { m["amount"] = -1.0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := validTea()
			tt.mutate(obj)
			raw := encode(t, obj)

			err := ValidateTea(raw)
			if tt.wantField == "" {
				assert.NoError(t, err)
				assert.True(t, IsValidTea(raw))
				return
			}
			assert.False(t, IsValidTea(raw))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.ErrorIs(t, err, ErrInvalidTea)
		})
	}
}

func TestStrictValidator(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(map[string]any)
		wantField string
	}{
		{name: "valid record", mutate: func(map[string]any) {}},
		{name: "blank name", mutate: func(m map[string]any) { m["name"] = "  " }, wantField: "name"},
		{name: "blank id", mutate: func(m map[string]any) { m["id"] = "" }, wantField: "id"},
		{name: "rating above five", mutate: func(m map[string]any) { m["rating"] = 5.5 }, wantField: "rating"},
		{name: "rating off step", mutate: func(m map[string]any) { m["rating"] = 3.3 }, wantField: "rating"},
		{name: "negative amount", mutate: func(m map[string]any) { m["amount"] = -2.0 }, wantField: "amount"},
		{name: "negative threshold", mutate: func(m map[string]any) { m["lowStockThreshold"] = -1.0 }, wantField: "lowStockThreshold"},
		{name: "bad purchase date", mutate: func(m map[string]any) { m["purchaseDate"] = "June" }, wantField: "purchaseDate"},
		{name: "date-only purchase date", mutate: func(m map[string]any) { m["purchaseDate"] = "2023-06-15" }},
		{
			name: "negative steep time",
			mutate: func(m map[string]any) {
				m["brewingInstructions"].(map[string]any)["steepTimeInSeconds"] = -30.0
			},
			wantField: "brewingInstructions.steepTimeInSeconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := validTea()
			tt.mutate(obj)
			err := StrictValidator.Validate(encode(t, obj))
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestValidateRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[]`, `42`, `"tea"`, `null`, `{`} {
		assert.False(t, IsValidTea([]byte(raw)), raw)
	}
}

func TestValidatorDecode(t *testing.T) {
	tea, err := StrictValidator.Decode(encode(t, validTea()))
	require.NoError(t, err)
	assert.Equal(t, "Earl Grey", tea.Name)
	assert.Equal(t, 240, tea.BrewingInstructions.SteepTimeInSeconds)

	assert.NoError(t, StrictValidator.Check(tea))
	tea.Brand = ""
	assert.ErrorIs(t, StrictValidator.Check(tea), ErrInvalidTea)
}

func TestImportErrorMessage(t *testing.T) {
	err := &ImportError{Failures: []RecordFailure{
		{Index: 0, ID: "a", Field: "type", Reason: "unknown value"},
		{Index: 3, Field: "id", Reason: "is required"},
	}}
	assert.ErrorIs(t, err, ErrInvalidImportData)
	assert.Equal(t,
		"invalid import data: record 0 (id a): type: unknown value; record 3: id: is required",
		err.Error())
}
