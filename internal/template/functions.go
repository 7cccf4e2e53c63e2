package template

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var funcRegistry = map[string]func(args string) (string, error){
	"uuid":          fnUUID,
	"timestamp":     fnTimestamp,
	"timestamp_ms":  fnTimestampMs,
	"random":        fnRandom,
	"random_string": fnRandomString,
	"date":          fnDate,
}

// evalFunction evaluates a built-in call such as date(2006-01-02). The
// second return is false when expr is not a call to a known function.
func evalFunction(expr string) (string, bool, error) {
	parenIdx := strings.Index(expr, "(")
	if parenIdx == -1 || !strings.HasSuffix(expr, ")") {
		return "", false, nil
	}

	funcName := expr[:parenIdx]
	fn, ok := funcRegistry[funcName]
	if !ok {
		return "", false, nil
	}

	result, err := fn(expr[parenIdx+1 : len(expr)-1])
	if err != nil {
		return "", true, fmt.Errorf("function %s: %w", funcName, err)
	}
	return result, true, nil
}

func fnUUID(args string) (string, error) {
	if args != "" {
		return "", fmt.Errorf("uuid() takes no arguments")
	}
	return uuid.NewString(), nil
}

// fnTimestamp returns Unix seconds; many check-in APIs sign requests with it.
func fnTimestamp(args string) (string, error) {
	if args != "" {
		return "", fmt.Errorf("timestamp() takes no arguments")
	}
	return strconv.FormatInt(time.Now().Unix(), 10), nil
}

func fnTimestampMs(args string) (string, error) {
	if args != "" {
		return "", fmt.Errorf("timestamp_ms() takes no arguments")
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10), nil
}

// fnRandom returns an integer in [min, max]. Usage: random(min,max)
func fnRandom(args string) (string, error) {
	parts := strings.Split(args, ",")
	if len(parts) != 2 {
		return "", fmt.Errorf("random(min,max) requires exactly 2 arguments")
	}

	lo, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid min value: %w", err)
	}
	hi, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid max value: %w", err)
	}
	if lo > hi {
		return "", fmt.Errorf("min (%d) must be <= max (%d)", lo, hi)
	}

	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(lo+n.Int64(), 10), nil
}

// fnRandomString returns length alphanumeric characters (nonce fields).
func fnRandomString(args string) (string, error) {
	length, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return "", fmt.Errorf("invalid length: %w", err)
	}
	if length <= 0 || length > 1000 {
		return "", fmt.Errorf("length must be in 1..1000")
	}

	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}

// fnDate formats the local time with a Go layout, RFC 3339 when empty.
// date(2006-01-02) renders today's date, as check-in forms often submit.
func fnDate(args string) (string, error) {
	layout := strings.TrimSpace(args)
	if layout == "" {
		layout = time.RFC3339
	}
	return time.Now().Format(layout), nil
}
