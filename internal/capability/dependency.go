package capability

import "encoding/json"

// Dependency rules decide whether a secondary control is currently usable.
// A rule combines conditions over live directive values with a single
// and/or operator; rules are always evaluated against the full merged
// state snapshot, never a partial push update.

// Condition operators.
const (
	OpEq = "eq"
	OpNe = "ne"
	OpGt = "gt"
	OpLt = "lt"
	OpIn = "in"
)

// Rule operators.
const (
	RuleAnd = "and"
	RuleOr  = "or"
)

// Condition compares one directive's current value against a constant.
type Condition struct {
	Directive string `json:"directive"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
}

// Rule combines conditions with a boolean operator. A nil rule or a rule
// with no conditions means the control is always available.
type Rule struct {
	Operator   string      `json:"operator"`
	Conditions []Condition `json:"conditions"`
}

// Evaluate reports whether the rule holds for the given state snapshot.
func (r *Rule) Evaluate(state map[string]any) bool {
	if r == nil || len(r.Conditions) == 0 {
		return true
	}

	switch r.Operator {
	case RuleOr:
		for _, c := range r.Conditions {
			if c.evaluate(state) {
				return true
			}
		}
		return false
	default:
		// "and" is the default for unrecognized operators as well: a
		// malformed rule should gate rather than silently open.
		for _, c := range r.Conditions {
			if !c.evaluate(state) {
				return false
			}
		}
		return true
	}
}

func (c Condition) evaluate(state map[string]any) bool {
	current, ok := state[c.Directive]
	if !ok {
		// A directive the device has not reported yet cannot satisfy any
		// condition.
		return false
	}

	switch c.Operator {
	case OpEq:
		return scalarEqual(current, c.Value)
	case OpNe:
		return !scalarEqual(current, c.Value)
	case OpGt:
		a, aok := toFloat(current)
		b, bok := toFloat(c.Value)
		return aok && bok && a > b
	case OpLt:
		a, aok := toFloat(current)
		b, bok := toFloat(c.Value)
		return aok && bok && a < b
	case OpIn:
		list, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range list {
			if scalarEqual(current, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// scalarEqual compares two scalars, coercing numbers so that the json
// float64 a snapshot carries matches an int a rule was written with.
func scalarEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
