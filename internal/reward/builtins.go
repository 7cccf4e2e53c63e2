package reward

import (
	"fmt"
	"math"
)

type builtin func(args []Value) (Value, error)

var builtins = map[string]builtin{
	"fmt_minutes": fmtMinutes,
	"floor":       unaryMath(math.Floor),
	"ceil":        unaryMath(math.Ceil),
	"round":       unaryMath(math.Round),
	"int":         unaryMath(math.Trunc),
	"abs":         unaryMath(math.Abs),
	"min":         fold(math.Min),
	"max":         fold(math.Max),
}

func numbers(args []Value) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		if a.IsString() {
			return nil, fmt.Errorf("%w: argument %d is a string", ErrType, i+1)
		}
		out[i] = a.Float()
	}
	return out, nil
}

func unaryMath(f func(float64) float64) builtin {
	return func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		n, err := numbers(args)
		if err != nil {
			return Value{}, err
		}
		return Number(f(n[0])), nil
	}
}

func fold(f func(a, b float64) float64) builtin {
	return func(args []Value) (Value, error) {
		if len(args) == 0 {
			return Value{}, fmt.Errorf("want at least 1 argument")
		}
		n, err := numbers(args)
		if err != nil {
			return Value{}, err
		}
		acc := n[0]
		for _, x := range n[1:] {
			acc = f(acc, x)
		}
		return Number(acc), nil
	}
}

// fmtMinutes renders a minute count as "Hh Mm", e.g. 90 -> "1h 30m".
func fmtMinutes(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("want 1 argument, got %d", len(args))
	}
	n, err := numbers(args)
	if err != nil {
		return Value{}, err
	}
	total := int64(math.Floor(n[0]))
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	return String(fmt.Sprintf("%s%dh %dm", sign, total/60, total%60)), nil
}
