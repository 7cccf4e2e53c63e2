// Package har turns a browser network capture (HAR) into the ordered list of
// requests a task replays.
package har

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"checkin/internal/core"
	"checkin/internal/logging"
)

var (
	ErrFileNotFound     = errors.New("capture file not found")
	ErrMalformedCapture = errors.New("malformed capture file")
	ErrEmptyCapture     = errors.New("capture file has no replayable requests")
)

var staticExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".css", ".js", ".ico", ".woff", ".ttf",
}

// Parse reads the capture at path and returns its replayable requests in
// capture order.
func Parse(path string, log logging.Logger) ([]core.RequestSpec, error) {
	if log == nil {
		log = logging.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read capture %s: %w", path, err)
	}

	specs, err := ParseBytes(data, log)
	if err != nil {
		if errors.Is(err, ErrEmptyCapture) {
			log.Error("capture contains no replayable requests", "file", path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug("capture parsed", "file", path, "requests", len(specs))
	return specs, nil
}

// ParseBytes parses an in-memory capture document.
func ParseBytes(data []byte, log logging.Logger) ([]core.RequestSpec, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedCapture)
	}

	entries := gjson.GetBytes(data, "log.entries")
	if !entries.IsArray() {
		return nil, fmt.Errorf("%w: missing log.entries", ErrMalformedCapture)
	}

	var specs []core.RequestSpec
	for i, entry := range entries.Array() {
		spec, ok := parseEntry(entry.Get("request"), log)
		if !ok {
			log.Debug("capture entry skipped", "index", i)
			continue
		}
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, ErrEmptyCapture
	}
	return specs, nil
}

func parseEntry(req gjson.Result, log logging.Logger) (core.RequestSpec, bool) {
	method := req.Get("method").String()
	rawURL := req.Get("url").String()
	if method == "" || rawURL == "" {
		return core.RequestSpec{}, false
	}
	if isStaticAsset(rawURL) {
		return core.RequestSpec{}, false
	}

	headers := make(map[string]string)
	req.Get("headers").ForEach(func(_, h gjson.Result) bool {
		name := h.Get("name").String()
		if name == "" || strings.HasPrefix(name, ":") {
			return true
		}
		headers[name] = h.Get("value").String()
		return true
	})

	spec := core.RequestSpec{
		Method:  strings.ToUpper(method),
		URL:     rawURL,
		Headers: headers,
	}

	post := req.Get("postData")
	if post.Exists() && post.Get("text").Exists() {
		spec.Body, spec.BodyKind = decodeBody(
			post.Get("text").String(),
			post.Get("mimeType").String(),
			post.Get("encoding").String(),
			log,
		)
	}
	return spec, true
}

func isStaticAsset(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(path)
	for _, ext := range staticExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func decodeBody(text, mimeType, encoding string, log logging.Logger) ([]byte, core.BodyKind) {
	mimeType = strings.ToLower(mimeType)
	switch {
	case strings.EqualFold(encoding, "base64"):
		raw, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			log.Error("base64 body decode failed, sending raw text", "error", err)
			return []byte(text), core.BodyText
		}
		return raw, core.BodyBinary
	case strings.Contains(mimeType, "application/json"):
		return []byte(text), core.BodyJSON
	case strings.Contains(mimeType, "application/octet-stream"):
		if raw, ok := latin1(text); ok {
			return raw, core.BodyBinary
		}
		return []byte(text), core.BodyText
	default:
		return []byte(text), core.BodyText
	}
}

// latin1 encodes text one byte per rune. It fails if any rune is above 0xFF.
func latin1(text string) ([]byte, bool) {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if r > 0xFF {
			return nil, false
		}
		out = append(out, byte(r))
	}
	return out, true
}
