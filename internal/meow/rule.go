package meow

import "fmt"

// NewRule pairs a pattern with the recipe it names. Construction fails with
// ErrBinding if pattern.Recipe does not equal recipe.Name.
func NewRule(id string, pattern *Pattern, recipe *Recipe) (*Rule, error) {
	if pattern == nil || recipe == nil {
		return nil, fmt.Errorf("%w: pattern and recipe are both required", ErrValidation)
	}
	if pattern.Recipe != recipe.Name {
		return nil, fmt.Errorf("%w: pattern %q references recipe %q, got %q", ErrBinding, pattern.Name, pattern.Recipe, recipe.Name)
	}
	return &Rule{
		ID:      id,
		Name:    fmt.Sprintf("%s+%s", pattern.Name, recipe.Name),
		Pattern: pattern,
		Recipe:  recipe,
	}, nil
}

// CreateRules derives one Rule per pattern whose recipe field names a known
// recipe. Patterns/recipes maps must be keyed by their own Name field;
// mismatches are reported as ErrConsistency. Patterns naming an unknown
// recipe are silently skipped, matching the reference implementation's
// "try to bind, skip on mismatch" behaviour. newID is handed the set of ids
// already minted in this call so it can collision-check against them (see
// NewRuleID).
func CreateRules(patterns map[string]*Pattern, recipes map[string]*Recipe, newID func(existing map[string]struct{}) string) (map[string]*Rule, error) {
	for k, p := range patterns {
		if k != p.Name {
			return nil, fmt.Errorf("%w: pattern key %q indexes pattern named %q", ErrConsistency, k, p.Name)
		}
	}
	for k, r := range recipes {
		if k != r.Name {
			return nil, fmt.Errorf("%w: recipe key %q indexes recipe named %q", ErrConsistency, k, r.Name)
		}
	}

	rules := make(map[string]*Rule)
	existing := make(map[string]struct{}, len(patterns))
	for _, pattern := range patterns {
		recipe, ok := recipes[pattern.Recipe]
		if !ok {
			continue
		}
		id := newID(existing)
		existing[id] = struct{}{}
		rule, err := NewRule(id, pattern, recipe)
		if err != nil {
			// binding mismatch can't actually happen here since we looked
			// the recipe up by pattern.Recipe, but stay defensive.
			continue
		}
		rules[rule.ID] = rule
	}
	return rules, nil
}
