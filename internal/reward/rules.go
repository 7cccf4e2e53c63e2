package reward

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DaysVar is the name bound to the successful-days counter.
const DaysVar = "days"

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Rule derives one output field.
type Rule struct {
	Field string
	Expr  *Expr
}

// Field is one computed reward.
type Field struct {
	Name  string
	Value Value
}

// Rules are evaluated in declared order, so later rules may read earlier
// fields.
type Rules []Rule

// ParseRules compiles field/expression pairs in order. A rule may only read
// days and fields declared before it; rules that fail to compile are left out
// and their errors joined.
func ParseRules(pairs [][2]string) (Rules, error) {
	var (
		rules Rules
		errs  []error
		seen  = map[string]bool{}
	)
	for _, p := range pairs {
		name, src := p[0], p[1]
		switch {
		case !fieldName.MatchString(name):
			errs = append(errs, fmt.Errorf("reward %q: invalid field name", name))
			continue
		case name == DaysVar:
			errs = append(errs, fmt.Errorf("reward %q: name is reserved", name))
			continue
		case seen[name]:
			errs = append(errs, fmt.Errorf("reward %q: declared twice", name))
			continue
		}
		seen[name] = true

		expr, err := Parse(src)
		if err != nil {
			errs = append(errs, fmt.Errorf("reward %q: %w", name, err))
			continue
		}
		if ref := unknownRef(expr, rules); ref != "" {
			errs = append(errs, fmt.Errorf("reward %q: %w: %s is not an earlier field", name, ErrUnknownName, ref))
			continue
		}
		rules = append(rules, Rule{Field: name, Expr: expr})
	}
	return rules, errors.Join(errs...)
}

// unknownRef returns the first name read by expr that is neither the day
// counter nor a field of an earlier rule.
func unknownRef(expr *Expr, earlier Rules) string {
	for _, ref := range expr.Names() {
		if ref == DaysVar {
			continue
		}
		found := false
		for _, r := range earlier {
			if r.Field == ref {
				found = true
				break
			}
		}
		if !found {
			return ref
		}
	}
	return ""
}

// LoadRules reads the "rewards" mapping from a YAML file, keeping document
// order. A missing file yields no rules.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reward rules: %w", err)
	}
	return ParseRulesYAML(data)
}

// ParseRulesYAML decodes a document of the form:
//
//	rewards:
//	  bonus_minutes: days * 15
//	  bonus_text: fmt_minutes(bonus_minutes)
func ParseRulesYAML(data []byte) (Rules, error) {
	var doc struct {
		Rewards yaml.Node `yaml:"rewards"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse reward rules: %w", err)
	}
	n := &doc.Rewards
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse reward rules: line %d: rewards must be a mapping", n.Line)
	}

	pairs := make([][2]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("parse reward rules: line %d: %q must be a scalar expression", v.Line, k.Value)
		}
		pairs = append(pairs, [2]string{k.Value, v.Value})
	}
	return ParseRules(pairs)
}

// Compute evaluates every rule for the given day count. A failing rule is
// left out of the result and its error joined into the returned error; later
// rules still run.
func (rs Rules) Compute(days int) ([]Field, error) {
	env := Env{DaysVar: Number(float64(days))}
	var (
		fields []Field
		errs   []error
	)
	for _, r := range rs {
		v, err := r.Expr.Eval(env)
		if err != nil {
			errs = append(errs, fmt.Errorf("reward %q: %w", r.Field, err))
			continue
		}
		env[r.Field] = v
		fields = append(fields, Field{Name: r.Field, Value: v})
	}
	return fields, errors.Join(errs...)
}
