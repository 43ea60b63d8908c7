// Structural and strict validation of untrusted tea records.
package types

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Validator accepts or rejects untrusted Tea-shaped JSON (import files,
// legacy records).
//
// The zero Validator performs the structural check: required fields are
// present with the right primitive type, enumerations hold a declared
// variant, and optional fields are type-checked only when present. Integer
// fields must hold whole numbers so the record decodes into a Tea.
//
// A Strict validator also enforces value ranges: non-blank id, name, and
// brand; rating within [0,5] in 0.5 steps; non-negative amounts, prices,
// thresholds, and steep time; parseable dates and timestamps.
type Validator struct {
	Strict bool
}

// StrictValidator is the validator used for imports and legacy migration.
var StrictValidator = Validator{Strict: true}

// IsValidTea reports whether raw passes the structural check.
func IsValidTea(raw []byte) bool {
	return Validator{}.Validate(raw) == nil
}

// ValidateTea runs the structural check and returns a *ValidationError on
// failure.
func ValidateTea(raw []byte) error {
	return Validator{}.Validate(raw)
}

// Validate checks raw and returns a *ValidationError naming the first field
// that failed.
func (v Validator) Validate(raw []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return &ValidationError{Field: "record", Reason: "not a JSON object"}
	}
	return v.validateObject(obj)
}

// Check validates an already-typed Tea by running it through the same rules
// as untrusted JSON.
func (v Validator) Check(t Tea) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return &ValidationError{Field: "record", Reason: err.Error()}
	}
	return v.Validate(raw)
}

// Decode validates raw and decodes it into a Tea.
func (v Validator) Decode(raw []byte) (Tea, error) {
	if err := v.Validate(raw); err != nil {
		return Tea{}, err
	}
	var t Tea
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tea{}, &ValidationError{Field: "record", Reason: err.Error()}
	}
	return t, nil
}

func (v Validator) validateObject(obj map[string]any) error {
	for _, field := range []string{"id", "name", "brand", "tastingNotes"} {
		s, err := requireString(obj, field)
		if err != nil {
			return err
		}
		if v.Strict && field != "tastingNotes" && strings.TrimSpace(s) == "" {
			return invalid(field, "must not be blank")
		}
	}

	if err := requireEnum(obj, "type", TeaTypes); err != nil {
		return err
	}
	if err := requireEnum(obj, "form", TeaForms); err != nil {
		return err
	}
	if err := requireEnum(obj, "unit", Units); err != nil {
		return err
	}

	amount, err := requireNumber(obj, "amount")
	if err != nil {
		return err
	}
	if v.Strict && amount < 0 {
		return invalid("amount", "must not be negative")
	}

	rating, err := requireNumber(obj, "rating")
	if err != nil {
		return err
	}
	if v.Strict && (rating < 0 || rating > 5 || rating*2 != math.Trunc(rating*2)) {
		return invalid("rating", "must be between 0 and 5 in steps of 0.5")
	}

	if err := v.validateBrewing(obj); err != nil {
		return err
	}
	return v.validateOptional(obj)
}

func (v Validator) validateBrewing(obj map[string]any) error {
	raw, ok := obj["brewingInstructions"]
	if !ok || raw == nil {
		return invalid("brewingInstructions", "is required")
	}
	bi, ok := raw.(map[string]any)
	if !ok {
		return invalid("brewingInstructions", "must be an object")
	}
	if _, err := requireNumber(bi, "temperature"); err != nil {
		return prefixed("brewingInstructions", err)
	}
	if err := requireEnum(bi, "tempUnit", TemperatureUnits); err != nil {
		return prefixed("brewingInstructions", err)
	}
	steep, err := requireWhole(bi, "steepTimeInSeconds")
	if err != nil {
		return prefixed("brewingInstructions", err)
	}
	if v.Strict && steep < 0 {
		return invalid("brewingInstructions.steepTimeInSeconds", "must not be negative")
	}
	return nil
}

func (v Validator) validateOptional(obj map[string]any) error {
	for _, field := range []string{"origin", "imageUrl", "currency", "notes"} {
		if _, err := optionalString(obj, field); err != nil {
			return err
		}
	}

	if date, err := optionalString(obj, "purchaseDate"); err != nil {
		return err
	} else if v.Strict && date != "" && !isDate(date) {
		return invalid("purchaseDate", "must be an ISO-8601 date")
	}

	if last, err := optionalString(obj, "lastBrewed"); err != nil {
		return err
	} else if v.Strict && last != "" && !isTimestamp(last) {
		return invalid("lastBrewed", "must be an ISO-8601 timestamp")
	}

	for _, field := range []string{"price", "lowStockThreshold"} {
		n, present, err := optionalNumber(obj, field)
		if err != nil {
			return err
		}
		if v.Strict && present && n < 0 {
			return invalid(field, "must not be negative")
		}
	}

	if val, ok := present(obj, "totalBrewCount"); ok {
		n, isNum := val.(float64)
		if !isNum || n != math.Trunc(n) {
			return invalid("totalBrewCount", "must be a whole number")
		}
		if v.Strict && n < 0 {
			return invalid("totalBrewCount", "must not be negative")
		}
	}

	if val, ok := present(obj, "organic"); ok {
		if _, isBool := val.(bool); !isBool {
			return invalid("organic", "must be a boolean")
		}
	}

	if val, ok := present(obj, "caffeineLevel"); ok {
		if !inEnum(val, CaffeineLevels) {
			return invalid("caffeineLevel", "unknown value")
		}
	}

	if val, ok := present(obj, "ingredients"); ok {
		items, isList := val.([]any)
		if !isList {
			return invalid("ingredients", "must be a list of strings")
		}
		for _, item := range items {
			if _, isString := item.(string); !isString {
				return invalid("ingredients", "must be a list of strings")
			}
		}
	}

	if val, ok := present(obj, "flavorTags"); ok {
		items, isList := val.([]any)
		if !isList {
			return invalid("flavorTags", "must be a list")
		}
		for _, item := range items {
			if !inEnum(item, FlavorProfiles) {
				return invalid("flavorTags", "unknown flavor")
			}
		}
	}

	if val, ok := present(obj, "brewingHistory"); ok {
		items, isList := val.([]any)
		if !isList {
			return invalid("brewingHistory", "must be a list")
		}
		for _, item := range items {
			if err := v.validateHistoryEntry(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v Validator) validateHistoryEntry(item any) error {
	entry, ok := item.(map[string]any)
	if !ok {
		return invalid("brewingHistory", "entries must be objects")
	}
	date, err := requireString(entry, "date")
	if err != nil {
		return prefixed("brewingHistory", err)
	}
	if v.Strict && !isTimestamp(date) {
		return invalid("brewingHistory.date", "must be an ISO-8601 timestamp")
	}
	amount, err := requireNumber(entry, "amount")
	if err != nil {
		return prefixed("brewingHistory", err)
	}
	if v.Strict && amount < 0 {
		return invalid("brewingHistory.amount", "must not be negative")
	}
	if err := requireEnum(entry, "unit", Units); err != nil {
		return prefixed("brewingHistory", err)
	}
	return nil
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func prefixed(parent string, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		return &ValidationError{Field: parent + "." + ve.Field, Reason: ve.Reason}
	}
	return err
}

// present returns the value under key unless it is absent or JSON null.
func present(obj map[string]any, key string) (any, bool) {
	val, ok := obj[key]
	if !ok || val == nil {
		return nil, false
	}
	return val, true
}

func requireString(obj map[string]any, key string) (string, error) {
	val, ok := obj[key]
	if !ok {
		return "", invalid(key, "is required")
	}
	s, ok := val.(string)
	if !ok {
		return "", invalid(key, "must be a string")
	}
	return s, nil
}

func optionalString(obj map[string]any, key string) (string, error) {
	val, ok := present(obj, key)
	if !ok {
		return "", nil
	}
	s, isString := val.(string)
	if !isString {
		return "", invalid(key, "must be a string")
	}
	return s, nil
}

func requireNumber(obj map[string]any, key string) (float64, error) {
	val, ok := obj[key]
	if !ok {
		return 0, invalid(key, "is required")
	}
	n, ok := val.(float64)
	if !ok {
		return 0, invalid(key, "must be a number")
	}
	return n, nil
}

func requireWhole(obj map[string]any, key string) (float64, error) {
	n, err := requireNumber(obj, key)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) {
		return 0, invalid(key, "must be a whole number")
	}
	return n, nil
}

func optionalNumber(obj map[string]any, key string) (float64, bool, error) {
	val, ok := present(obj, key)
	if !ok {
		return 0, false, nil
	}
	n, isNum := val.(float64)
	if !isNum {
		return 0, true, invalid(key, "must be a number")
	}
	return n, true, nil
}

func requireEnum[T ~string](obj map[string]any, key string, variants []T) error {
	val, ok := obj[key]
	if !ok {
		return invalid(key, "is required")
	}
	if !inEnum(val, variants) {
		return invalid(key, "unknown value")
	}
	return nil
}

func inEnum[T ~string](val any, variants []T) bool {
	s, ok := val.(string)
	if !ok {
		return false
	}
	for _, v := range variants {
		if string(v) == s {
			return true
		}
	}
	return false
}

func isDate(s string) bool {
	if _, err := time.Parse(DateLayout, s); err == nil {
		return true
	}
	return isTimestamp(s)
}

func isTimestamp(s string) bool {
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}
