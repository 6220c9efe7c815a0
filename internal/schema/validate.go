package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// injectionPattern flags statement separators, inline comment markers, a
// closing parenthesis, and common DDL/DML keywords. A heuristic layer only:
// the store binds every value regardless of what passes here.
var injectionPattern = regexp.MustCompile(
	`(?i)(;|--|\bDROP\b|\bDELETE\b|\bINSERT\b|\bUPDATE\b|\bALTER\b|\bCREATE\b|\))`,
)

// LooksLikeInjection reports whether a string value matches the heuristic
// injection pattern.
func LooksLikeInjection(value string) bool {
	return injectionPattern.MatchString(value)
}

// RefChecker answers the two store probes the validator needs: per-tenant
// foreign-key resolution and per-tenant uniqueness. Both are scoped to the
// owner, so a row that exists under another tenant does not resolve.
type RefChecker interface {
	// RefExists reports whether table.column = value exists for the owner.
	RefExists(ctx context.Context, ownerID int64, table, column string, value any) (bool, error)
	// ValueTaken reports whether another row of kind already uses value in
	// field for the owner. excludeID > 0 exempts the record being updated.
	ValueTaken(ctx context.Context, ownerID int64, kind, field string, value any, excludeID int64) (bool, error)
}

// Engine validates candidate payloads against the registry.
type Engine struct {
	reg  *Registry
	refs RefChecker
}

// NewEngine creates a validation engine over the given registry and store
// probes.
func NewEngine(reg *Registry, refs RefChecker) *Engine {
	return &Engine{reg: reg, refs: refs}
}

// Validate checks payload against the registered schema for kind and returns
// the ordered list of violations (empty means accepted). ownerID scopes the
// foreign-key and uniqueness probes. On update, recordID exempts the record
// being updated from uniqueness checks and required fields are not enforced.
//
// The returned error is reserved for store probe failures; rule violations
// never surface as errors.
func (e *Engine) Validate(ctx context.Context, ownerID int64, kind string, payload map[string]any, isUpdate bool, recordID int64) ([]string, error) {
	res, ok := e.reg.Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	var violations []string

	// The ownership key is never externally settable.
	if _, present := payload[OwnerKey]; present {
		violations = append(violations, OwnerKey+" cannot be provided manually")
	}

	for _, field := range sortedKeys(payload) {
		if field == OwnerKey {
			continue
		}
		if _, known := res.Fields[field]; !known {
			violations = append(violations, fmt.Sprintf("unknown field '%s'", field))
		}
	}

	if !isUpdate {
		for _, field := range res.FieldOrder {
			if !res.Fields[field].Required {
				continue
			}
			if v, present := payload[field]; !present || v == nil {
				violations = append(violations, fmt.Sprintf("missing required field '%s'", field))
			}
		}
	}

	for _, field := range res.FieldOrder {
		value, present := payload[field]
		if !present {
			continue
		}
		spec := res.Fields[field]

		if spec.Type == TypeString {
			if s, isStr := value.(string); isStr && LooksLikeInjection(s) {
				violations = append(violations,
					fmt.Sprintf("field '%s' contains forbidden characters or SQL patterns", field))
			}
		}

		switch spec.Type {
		case TypeString:
			if _, isStr := value.(string); !isStr {
				violations = append(violations, fmt.Sprintf("field '%s' must be string", field))
			}
		case TypeInteger:
			if !isInteger(value) {
				violations = append(violations, fmt.Sprintf("field '%s' must be integer", field))
			}
		case TypeReal:
			if !isReal(value) {
				violations = append(violations, fmt.Sprintf("field '%s' must be number", field))
			}
		}

		if s, isStr := value.(string); isStr && spec.MaxLength > 0 && len(s) > spec.MaxLength {
			violations = append(violations,
				fmt.Sprintf("field '%s' exceeds max length %d", field, spec.MaxLength))
		}

		if n, numeric := asFloat(value); numeric {
			if spec.Min != nil && n < *spec.Min {
				violations = append(violations,
					fmt.Sprintf("field '%s' below minimum %s", field, formatBound(*spec.Min)))
			}
			if spec.Max != nil && n > *spec.Max {
				violations = append(violations,
					fmt.Sprintf("field '%s' above maximum %s", field, formatBound(*spec.Max)))
			}
		}

		if len(spec.Enum) > 0 && value != nil {
			if s, isStr := value.(string); !isStr || !contains(spec.Enum, s) {
				violations = append(violations,
					fmt.Sprintf("field '%s' must be one of %v", field, spec.Enum))
			}
		}

		if spec.ForeignKey != nil && value != nil {
			fk := spec.ForeignKey
			exists, err := e.refs.RefExists(ctx, ownerID, fk.Table, fk.Column, BindValue(spec, value))
			if err != nil {
				return nil, fmt.Errorf("foreign key probe for %s.%s: %w", kind, field, err)
			}
			// Absent and owned-by-another-tenant are deliberately the same
			// outcome here.
			if !exists {
				violations = append(violations,
					fmt.Sprintf("invalid foreign key '%s' -> %s.%s", field, fk.Table, fk.Column))
			}
		}

		if spec.Unique && value != nil && value != "" {
			exclude := int64(0)
			if isUpdate {
				exclude = recordID
			}
			taken, err := e.refs.ValueTaken(ctx, ownerID, kind, field, BindValue(spec, value), exclude)
			if err != nil {
				return nil, fmt.Errorf("uniqueness probe for %s.%s: %w", kind, field, err)
			}
			if taken {
				violations = append(violations, fmt.Sprintf("field '%s' must be unique", field))
			}
		}
	}

	return violations, nil
}

// BindValue normalizes a payload value to the driver-bindable representation
// for its declared type. json.Number values become int64 or float64; other
// values pass through unchanged.
func BindValue(spec FieldSpec, value any) any {
	n, ok := value.(json.Number)
	if !ok {
		return value
	}
	switch spec.Type {
	case TypeInteger:
		if i, err := n.Int64(); err == nil {
			return i
		}
	case TypeReal:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return n.String()
}

// isInteger reports whether the value is strictly an integer. Booleans never
// qualify, and a real-typed JSON number ("5.0") is rejected.
func isInteger(v any) bool {
	switch n := v.(type) {
	case json.Number:
		_, err := strconv.ParseInt(n.String(), 10, 64)
		return err == nil
	case int:
		return true
	case int64:
		return true
	default:
		return false
	}
}

// isReal reports whether the value is numeric (integers qualify, booleans
// never do).
func isReal(v any) bool {
	switch n := v.(type) {
	case json.Number:
		_, err := strconv.ParseFloat(n.String(), 64)
		return err == nil
	case int, int64, float64:
		return true
	default:
		return false
	}
}

// asFloat extracts a numeric value for bounds checking.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
