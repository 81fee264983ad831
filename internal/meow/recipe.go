package meow

import "fmt"

// NewRecipe validates and constructs a Recipe.
func NewRecipe(name string, kind RecipeKind, body string, parameters map[string]any, requirements []string) (*Recipe, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: recipe name %q must match [A-Za-z0-9_-]+", ErrValidation, name)
	}
	switch kind {
	case RecipeScript, RecipeNotebook, RecipeShell:
	default:
		return nil, fmt.Errorf("%w: recipe %q: unknown kind %q", ErrValidation, name, kind)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: recipe %q: body is required", ErrValidation, name)
	}

	r := &Recipe{
		Name:         name,
		Kind:         kind,
		Body:         body,
		Requirements: append([]string(nil), requirements...),
	}
	if parameters != nil {
		r.Parameters = cloneAny(parameters)
	}
	return r, nil
}
