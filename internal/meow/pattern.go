package meow

import (
	"fmt"
	"path/filepath"
)

// NewPattern validates and constructs a Pattern. mask, parameters, outputs
// and sweep may be nil.
func NewPattern(name, triggeringPath, triggeringFile, recipe string, mask []string, parameters map[string]any, outputs map[string]string, sweep map[string]SweepAxis) (*Pattern, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: pattern name %q must match [A-Za-z0-9_-]+", ErrValidation, name)
	}
	if triggeringPath == "" {
		return nil, fmt.Errorf("%w: pattern %q: triggering_path is required", ErrValidation, name)
	}
	if filepath.IsAbs(triggeringPath) {
		return nil, fmt.Errorf("%w: pattern %q: triggering_path must be relative", ErrValidation, name)
	}
	if triggeringFile == "" {
		return nil, fmt.Errorf("%w: pattern %q: triggering_file is required", ErrValidation, name)
	}
	if recipe == "" {
		return nil, fmt.Errorf("%w: pattern %q: recipe is required", ErrValidation, name)
	}
	for _, kind := range mask {
		if !ValidEventKind(kind) {
			return nil, fmt.Errorf("%w: pattern %q: %q is not a valid event kind", ErrValidation, name, kind)
		}
	}
	for axisName, axis := range sweep {
		if err := validateSweepAxis(axisName, axis); err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %s", ErrValidation, name, err)
		}
	}

	p := &Pattern{
		Name:           name,
		TriggeringPath: triggeringPath,
		TriggeringFile: triggeringFile,
		Recipe:         recipe,
		EventMask:      append([]string(nil), mask...),
	}
	if parameters != nil {
		p.Parameters = cloneAny(parameters)
	}
	if outputs != nil {
		p.Outputs = cloneStrings(outputs)
	}
	if sweep != nil {
		p.Sweep = make(map[string]SweepAxis, len(sweep))
		for k, v := range sweep {
			p.Sweep[k] = v
		}
	}
	return p, nil
}

func validateSweepAxis(name string, axis SweepAxis) error {
	switch {
	case axis.Jump == 0:
		return fmt.Errorf("sweep axis %q: jump must not be zero, would expand infinitely", name)
	case axis.Jump > 0 && !(axis.Stop > axis.Start):
		return fmt.Errorf("sweep axis %q: positive jump requires stop > start", name)
	case axis.Jump < 0 && !(axis.Stop < axis.Start):
		return fmt.Errorf("sweep axis %q: negative jump requires stop < start", name)
	}
	return nil
}

func cloneAny(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
