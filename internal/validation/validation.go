// Package validation evaluates field rules against user input and
// accumulates errors as field -> rule -> message.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// RuleKind selects how a Rule checks its value
type RuleKind int

const (
	// KindRequired fails on empty values
	KindRequired RuleKind = iota
	// KindPattern fails when the value does not match a regular expression
	KindPattern
	// KindLengthRange fails when the value length is outside [Min, Max]
	KindLengthRange
	// KindCustom delegates to a predicate
	KindCustom
)

// Rule is one named check on a field
type Rule struct {
	Name    string
	Kind    RuleKind
	Message string

	Pattern *regexp.Regexp
	Min     int
	Max     int
	Check   func(value any) bool

	// IfSet skips the rule when the field is absent or empty
	IfSet bool
	// Last stops evaluating the field's remaining rules after a failure
	Last bool
}

// Required builds a rule that rejects empty values
func Required(name, message string) Rule {
	return Rule{Name: name, Kind: KindRequired, Message: message}
}

// Pattern builds a rule that requires the value to match expr
func Pattern(name, expr, message string) Rule {
	return Rule{Name: name, Kind: KindPattern, Pattern: regexp.MustCompile(expr), Message: message}
}

// LengthRange builds a rule that bounds the value length
func LengthRange(name string, minLen, maxLen int, message string) Rule {
	return Rule{Name: name, Kind: KindLengthRange, Min: minLen, Max: maxLen, Message: message}
}

// Custom builds a rule backed by check
func Custom(name string, check func(value any) bool, message string) Rule {
	return Rule{Name: name, Kind: KindCustom, Check: check, Message: message}
}

// OnlyIfSet marks the rule as skipped for empty values
func (r Rule) OnlyIfSet() Rule {
	r.IfSet = true
	return r
}

// StopOnFailure marks the rule as the last one evaluated when it fails
func (r Rule) StopOnFailure() Rule {
	r.Last = true
	return r
}

// FieldRules groups the rules of one input field, evaluated in order
type FieldRules struct {
	Field string
	Rules []Rule
}

// Input maps field names to submitted values (strings or string slices)
type Input map[string]any

// Errors holds failures as field -> rule -> message
type Errors map[string]map[string]string

// Add records a failure
func (e Errors) Add(field, rule, message string) {
	if e[field] == nil {
		e[field] = map[string]string{}
	}
	e[field][rule] = message
}

// Merge copies every failure of other into e
func (e Errors) Merge(other Errors) {
	for field, rules := range other {
		for rule, message := range rules {
			e.Add(field, rule, message)
		}
	}
}

// Has reports whether field.rule failed
func (e Errors) Has(field, rule string) bool {
	_, ok := e[field][rule]
	return ok
}

// Empty reports whether no failures were recorded
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Error lists the failures in a stable order
func (e Errors) Error() string {
	var parts []string
	for field, rules := range e {
		for rule, message := range rules {
			parts = append(parts, fmt.Sprintf("%s.%s: %s", field, rule, message))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Validate evaluates rules against input and returns the failures
func Validate(rules []FieldRules, input Input) Errors {
	errs := Errors{}

	for _, fr := range rules {
		value := input[fr.Field]
		for _, rule := range fr.Rules {
			if rule.IfSet && IsEmpty(value) {
				continue
			}
			if rule.passes(value) {
				continue
			}
			errs.Add(fr.Field, rule.Name, rule.Message)
			if rule.Last {
				break
			}
		}
	}

	return errs
}

func (r Rule) passes(value any) bool {
	switch r.Kind {
	case KindRequired:
		return !IsEmpty(value)
	case KindPattern:
		return r.Pattern.MatchString(asString(value))
	case KindLengthRange:
		n := len(asString(value))
		return n >= r.Min && n <= r.Max
	case KindCustom:
		return r.Check(value)
	default:
		return false
	}
}

// IsEmpty reports whether value is absent, blank or an empty list
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
