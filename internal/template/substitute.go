// Package template expands ${...} placeholders in captured requests right
// before they are sent, so a recorded capture can carry per-run values such
// as timestamps, nonces or secrets kept in the environment.
package template

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"checkin/internal/core"
)

// varPattern matches ${name}, ${env:NAME} and ${func(args)} placeholders.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*(?::[A-Za-z_][A-Za-z0-9_]*|\([^{}]*\))?)\}`)

// Substitute expands placeholders in text.
//
// Round variables and ${env:NAME} are looked up; placeholders that resolve to
// nothing are left verbatim because captured bodies may legitimately contain
// "${" text. Only a failing built-in function is an error. Text without "${"
// is returned unchanged.
func Substitute(text string, vars core.Variables) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}

	var errs []error
	result := varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-1]

		if envName, ok := strings.CutPrefix(name, "env:"); ok {
			if val, ok := os.LookupEnv(envName); ok {
				return val
			}
			return match
		}

		if val, isFunc, err := evalFunction(name); isFunc {
			if err != nil {
				errs = append(errs, err)
				return match
			}
			return val
		}

		if vars != nil {
			if val, ok := vars.Get(name); ok {
				return fmt.Sprintf("%v", val)
			}
		}
		return match
	})

	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return result, nil
}

// SubstituteMap applies Substitute to every value of m.
func SubstituteMap(m map[string]string, vars core.Variables) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]string, len(m))
	var errs []error
	for k, v := range m {
		substituted, err := Substitute(v, vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("header %q: %w", k, err))
			continue
		}
		result[k] = substituted
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}
