package core

import "context"

// Variables holds placeholder values available while sending a round.
type Variables interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapVariables is a simple map-based Variables implementation.
type MapVariables struct {
	data map[string]any
}

func NewVariables() *MapVariables {
	return &MapVariables{data: make(map[string]any)}
}

func (v *MapVariables) Get(key string) (any, bool) {
	val, ok := v.data[key]
	return val, ok
}

func (v *MapVariables) Set(key string, value any) {
	v.data[key] = value
}

type contextKey string

const variablesContextKey contextKey = "variables"

// ContextWithVariables attaches round variables to ctx.
func ContextWithVariables(ctx context.Context, vars Variables) context.Context {
	return context.WithValue(ctx, variablesContextKey, vars)
}

// VariablesFromContext returns the round variables, or an empty set.
func VariablesFromContext(ctx context.Context) Variables {
	if vars, ok := ctx.Value(variablesContextKey).(Variables); ok {
		return vars
	}
	return NewVariables()
}
