package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"banking/internal/logging"
	"banking/internal/models"
)

// maxIterations bounds fixed point evaluation so rule cycles cannot hang the
// pipeline. Realistic rule sets stabilize within a handful of passes.
const maxIterations = 32

// Engine applies a validated rule set to transactions.
type Engine struct {
	rules      []Rule
	categories map[string]models.Category
	log        logging.Logger
}

// NewEngine builds an engine over a rule set and the category table used to
// resolve category ids written by set actions.
func NewEngine(rs *RuleSet, categories map[string]models.Category, log logging.Logger) *Engine {
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	return &Engine{rules: rs.Rules, categories: categories, log: log}
}

// Apply runs the rule set over one transaction until two consecutive passes
// produce identical results. The input is never mutated. Cycles bail after
// maxIterations with a warning, returning the last result.
func (e *Engine) Apply(tx *models.Transaction) *models.Transaction {
	current := tx.Clone()
	for i := 0; i < maxIterations; i++ {
		next := e.pass(current)
		if next.Equal(current) {
			return next
		}
		current = next
	}
	e.log.Warn("Rule evaluation did not stabilize, keeping last result",
		logging.Field{Key: logging.FieldDate, Value: tx.TransactionDate},
		logging.Field{Key: logging.FieldAmount, Value: tx.Amount.String()})
	return current
}

// ApplyAll maps Apply over a batch.
func (e *Engine) ApplyAll(txs []*models.Transaction) []*models.Transaction {
	updated := make([]*models.Transaction, len(txs))
	for i, tx := range txs {
		updated[i] = e.Apply(tx)
	}
	return updated
}

// pass evaluates applicability against the pass input and folds the actions
// of every applicable rule over a copy, in file order.
func (e *Engine) pass(tx *models.Transaction) *models.Transaction {
	updated := tx.Clone()
	for _, rule := range e.rules {
		if !e.matches(rule, tx) {
			continue
		}
		for _, action := range rule.Actions {
			e.runAction(updated, action, rule.Name)
		}
	}
	return updated
}

func (e *Engine) matches(rule Rule, tx *models.Transaction) bool {
	for _, condition := range rule.Conditions {
		if condition.Match != nil && !evalMatch(tx, condition.Match) {
			return false
		}
		if condition.Numeric != nil && !evalNumeric(tx, condition.Numeric) {
			return false
		}
	}
	return true
}

func evalMatch(tx *models.Transaction, match *MatchCondition) bool {
	op := match.Op
	result := op.identity()

	if list, ok := resolveList(tx, match.Field); ok {
		for _, value := range match.Values {
			result = op.combine(result, containsString(list, value))
		}
		return result
	}

	value, ok := resolveScalar(tx, match.Field)
	if !ok {
		return false
	}
	for _, candidate := range match.Values {
		var hit bool
		switch match.Regex {
		case "", RegexNone:
			hit = value == candidate
		default:
			pattern, err := regexp.Compile("(?i)" + anchored(match.Regex, candidate))
			if err != nil {
				return false
			}
			hit = pattern.MatchString(value)
		}
		result = op.combine(result, hit)
	}
	return result
}

func evalNumeric(tx *models.Transaction, numeric *NumericCondition) bool {
	var value decimal.Decimal
	switch numeric.Field {
	case "amount":
		value = tx.Amount
	case "balance":
		if !tx.HasBalance {
			return false
		}
		value = tx.Balance
	default:
		return false
	}
	if numeric.Absolute {
		value = value.Abs()
	}
	comparison := value.Cmp(decimal.NewFromFloat(numeric.Value))
	switch numeric.Op {
	case NumEq:
		return comparison == 0
	case NumNe:
		return comparison != 0
	case NumLt:
		return comparison < 0
	case NumLe:
		return comparison <= 0
	case NumGt:
		return comparison > 0
	case NumGe:
		return comparison >= 0
	}
	return false
}

func (e *Engine) runAction(tx *models.Transaction, action Action, ruleName string) {
	log := e.log.WithField(logging.FieldRule, ruleName)
	switch {
	case action.Set != nil:
		value, err := renderTemplate(tx, action.Set.Value)
		if err != nil {
			log.WithError(err).Warn("Skipping set action, template failed")
			return
		}
		e.writeField(tx, action.Set.Field, value, log)
	case action.SetFromCapture != nil:
		capture := action.SetFromCapture
		source, ok := resolveScalar(tx, capture.Source)
		if !ok {
			return
		}
		pattern, err := regexp.Compile("(?i)" + capture.Regex)
		if err != nil {
			log.WithError(err).Warn("Skipping capture action, bad pattern")
			return
		}
		groups := pattern.FindStringSubmatch(source)
		if groups == nil {
			return
		}
		e.writeField(tx, capture.Field, groups[capture.Group], log)
	case action.Add != nil:
		e.appendValues(tx, action.Add, log)
	}
}

// writeField stores a rendered value into a settable field, wrapping
// subjects and resolving categories. Every successful write marks the field
// as rule-written.
func (e *Engine) writeField(tx *models.Transaction, field, value string, log logging.Logger) {
	switch field {
	case "type":
		txType := models.TransactionType(value)
		if !models.ValidTransactionType(txType) {
			log.Warn("Skipping write of unknown transaction type",
				logging.Field{Key: "type", Value: value})
			return
		}
		tx.Type = txType
	case "source":
		tx.Source = models.Issuer{Name: value}
	case "destination":
		tx.Destination = models.Recipient{Name: value}
	case "comment":
		tx.Comment = value
	case "category":
		category, ok := e.categories[value]
		if !ok {
			log.Warn("Skipping write of unknown category",
				logging.Field{Key: "category", Value: value})
			return
		}
		tx.Category = &category
	default:
		return
	}
	tx.Flags.Set(field, models.OriginRules)
}

func (e *Engine) appendValues(tx *models.Transaction, add *AddAction, log logging.Logger) {
	var target *[]string
	switch add.Field {
	case "tags":
		target = &tx.Tags
	case "keywords":
		target = &tx.Keywords
	default:
		return
	}
	appended := false
	for _, raw := range add.Values {
		value, err := renderTemplate(tx, raw)
		if err != nil {
			log.WithError(err).Warn("Skipping add value, template failed")
			continue
		}
		if containsString(*target, value) {
			continue
		}
		*target = append(*target, value)
		appended = true
	}
	if appended {
		tx.Flags.Set(add.Field, models.OriginRules)
	}
}

var templateRef = regexp.MustCompile(`\{([A-Za-z0-9_.]+)\}`)

// renderTemplate substitutes {details.<k>} and {transaction.<path>}
// references. An unresolvable reference fails the whole render so the caller
// can leave the target field untouched.
func renderTemplate(tx *models.Transaction, template string) (string, error) {
	var missing error
	rendered := templateRef.ReplaceAllStringFunc(template, func(ref string) string {
		path := ref[1 : len(ref)-1]
		lookup := path
		if rest, ok := strings.CutPrefix(path, "transaction."); ok {
			lookup = rest
		}
		value, ok := resolveScalar(tx, lookup)
		if !ok {
			missing = fmt.Errorf("unresolvable template reference %q", ref)
			return ref
		}
		return value
	})
	if missing != nil {
		return "", missing
	}
	return rendered, nil
}

// resolveScalar reads a dotted field path off a transaction. Subject fields
// resolve to the participant name; unknown participants resolve to nothing,
// which makes conditions on them false.
func resolveScalar(tx *models.Transaction, path string) (string, bool) {
	if key, ok := strings.CutPrefix(path, "details."); ok {
		value, present := tx.Details[key]
		return value, present
	}
	switch path {
	case "type":
		return string(tx.Type), true
	case "source":
		return subjectName(tx.Source)
	case "destination":
		return subjectName(tx.Destination)
	case "comment":
		return tx.Comment, true
	case "currency":
		return tx.Currency, true
	case "transaction_id":
		return tx.TransactionID, tx.TransactionID != ""
	case "category":
		if tx.Category == nil {
			return "", false
		}
		return tx.Category.ID, true
	}
	return "", false
}

func resolveList(tx *models.Transaction, path string) ([]string, bool) {
	switch path {
	case "keywords":
		return tx.Keywords, true
	case "tags":
		return tx.Tags, true
	}
	return nil, false
}

func subjectName(subject models.Subject) (string, bool) {
	if subject == nil {
		return "", false
	}
	name := subject.SubjectName()
	return name, name != ""
}

func containsString(list []string, value string) bool {
	for _, candidate := range list {
		if candidate == value {
			return true
		}
	}
	return false
}
