// Package rules implements the declarative enrichment pipeline. Rule sets
// are loaded from YAML, validated up front, and applied to transactions
// until a fixed point is reached, so one rule's output can activate another.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operator combines per-value condition results.
type Operator string

const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

// RegexMode selects how match condition values compare against the field.
type RegexMode string

const (
	// RegexNone compares by string equality.
	RegexNone RegexMode = "none"
	// RegexSearch matches anywhere in the field value.
	RegexSearch RegexMode = "search"
	// RegexMatch anchors the pattern at the start of the field value.
	RegexMatch RegexMode = "match"
)

// NumericOp compares a numeric field against a threshold.
type NumericOp string

const (
	NumEq NumericOp = "eq"
	NumNe NumericOp = "ne"
	NumLt NumericOp = "lt"
	NumLe NumericOp = "le"
	NumGt NumericOp = "gt"
	NumGe NumericOp = "ge"
)

// MatchCondition tests a transaction field against a list of values. List
// fields (keywords, tags) use membership; scalar fields use equality or a
// case-insensitive regex depending on the mode.
type MatchCondition struct {
	Field  string    `yaml:"field"`
	Values []string  `yaml:"values"`
	Op     Operator  `yaml:"op"`
	Regex  RegexMode `yaml:"regex"`
}

// NumericCondition compares a numeric transaction field.
type NumericCondition struct {
	Field    string    `yaml:"field"`
	Op       NumericOp `yaml:"op"`
	Value    float64   `yaml:"value"`
	Absolute bool      `yaml:"absolute"`
}

// Condition holds exactly one condition variant.
type Condition struct {
	Match   *MatchCondition   `yaml:"match"`
	Numeric *NumericCondition `yaml:"numeric"`
}

// SetAction renders a template and writes it into a field. Subject fields
// wrap the rendered value: source becomes an Issuer, destination a
// Recipient. The category field resolves the rendered value as a category
// id.
type SetAction struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// SetFromCaptureAction applies a regex to a source field and writes one
// capture group into the target field. A non-matching regex leaves the
// target untouched.
type SetFromCaptureAction struct {
	Field  string `yaml:"field"`
	Source string `yaml:"source"`
	Regex  string `yaml:"regex"`
	Group  int    `yaml:"group"`
}

// AddAction appends values to a list field, skipping ones already present.
type AddAction struct {
	Field  string   `yaml:"field"`
	Values []string `yaml:"values"`
}

// Action holds exactly one action variant.
type Action struct {
	Set            *SetAction            `yaml:"set"`
	SetFromCapture *SetFromCaptureAction `yaml:"set_from_capture"`
	Add            *AddAction            `yaml:"add"`
}

// Rule fires when every condition evaluates true; its actions then run in
// order.
type Rule struct {
	Name       string      `yaml:"name"`
	Conditions []Condition `yaml:"conditions"`
	Actions    []Action    `yaml:"actions"`
}

// RuleSet is the top level YAML structure.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

var settableFields = map[string]bool{
	"type":        true,
	"source":      true,
	"destination": true,
	"comment":     true,
	"category":    true,
}

var listFields = map[string]bool{
	"tags":     true,
	"keywords": true,
}

// Validate checks the structural invariants of a loaded rule set: exactly
// one variant per condition and per action, known operators and modes,
// compilable regexes, and writable target fields.
func (rs *RuleSet) Validate() error {
	for i, rule := range rs.Rules {
		name := rule.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if len(rule.Actions) == 0 {
			return fmt.Errorf("rule %s: no actions", name)
		}
		for _, condition := range rule.Conditions {
			if err := validateCondition(condition); err != nil {
				return fmt.Errorf("rule %s: %w", name, err)
			}
		}
		for _, action := range rule.Actions {
			if err := validateAction(action); err != nil {
				return fmt.Errorf("rule %s: %w", name, err)
			}
		}
	}
	return nil
}

func validateCondition(condition Condition) error {
	if (condition.Match == nil) == (condition.Numeric == nil) {
		return fmt.Errorf("condition needs exactly one of match or numeric")
	}
	if match := condition.Match; match != nil {
		if match.Field == "" {
			return fmt.Errorf("match condition without field")
		}
		switch match.Op {
		case "", OpAnd, OpOr:
		default:
			return fmt.Errorf("unknown operator %q", match.Op)
		}
		switch match.Regex {
		case "", RegexNone:
		case RegexSearch, RegexMatch:
			for _, value := range match.Values {
				if _, err := regexp.Compile(value); err != nil {
					return fmt.Errorf("bad pattern %q: %w", value, err)
				}
			}
		default:
			return fmt.Errorf("unknown regex mode %q", match.Regex)
		}
		return nil
	}
	numeric := condition.Numeric
	switch numeric.Field {
	case "amount", "balance":
	default:
		return fmt.Errorf("numeric condition on non-numeric field %q", numeric.Field)
	}
	switch numeric.Op {
	case NumEq, NumNe, NumLt, NumLe, NumGt, NumGe:
	default:
		return fmt.Errorf("unknown numeric operator %q", numeric.Op)
	}
	return nil
}

func validateAction(action Action) error {
	variants := 0
	if action.Set != nil {
		variants++
		if !settableFields[action.Set.Field] {
			return fmt.Errorf("set action on unwritable field %q", action.Set.Field)
		}
	}
	if action.SetFromCapture != nil {
		variants++
		capture := action.SetFromCapture
		if !settableFields[capture.Field] {
			return fmt.Errorf("set_from_capture action on unwritable field %q", capture.Field)
		}
		pattern, err := regexp.Compile("(?i)" + capture.Regex)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", capture.Regex, err)
		}
		if capture.Group < 1 || capture.Group > pattern.NumSubexp() {
			return fmt.Errorf("capture group %d out of range for %q", capture.Group, capture.Regex)
		}
	}
	if action.Add != nil {
		variants++
		if !listFields[action.Add.Field] {
			return fmt.Errorf("add action on non-list field %q", action.Add.Field)
		}
		if len(action.Add.Values) == 0 {
			return fmt.Errorf("add action without values")
		}
	}
	if variants != 1 {
		return fmt.Errorf("action needs exactly one of set, set_from_capture or add")
	}
	return nil
}

// Parse decodes and validates a YAML rule set. Rules keep their file order;
// all matching rules compose in that order.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing rules YAML: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// LoadFromFile reads and validates a rule set from a filesystem path.
func LoadFromFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading rules from %q: %w", path, err)
	}
	return rs, nil
}

func (op Operator) identity() bool {
	return op != OpOr
}

func (op Operator) combine(accumulated, result bool) bool {
	if op == OpOr {
		return accumulated || result
	}
	return accumulated && result
}

func anchored(mode RegexMode, pattern string) string {
	if mode == RegexMatch && !strings.HasPrefix(pattern, "^") {
		return "^(?:" + pattern + ")"
	}
	return pattern
}
