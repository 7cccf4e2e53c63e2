// Package tasks loads the task list: a JSON array of task objects, or a TOML
// document with [[tasks]] tables.
package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"checkin/internal/core"
)

var (
	ErrNotFound = errors.New("task list not found")
	ErrInvalid  = errors.New("invalid task list")
)

// entry is the on-disk shape of one task. capture_file is accepted as an
// alias of har_file.
type entry struct {
	Name            string  `json:"name" toml:"name"`
	HarFile         string  `json:"har_file" toml:"har_file"`
	CaptureFile     string  `json:"capture_file" toml:"capture_file"`
	Count           int     `json:"count" toml:"count"`
	IntervalSeconds float64 `json:"interval_seconds" toml:"interval_seconds"`
	SuccessMsg      string  `json:"success_msg" toml:"success_msg"`
	FailMsg         string  `json:"fail_msg" toml:"fail_msg"`
}

type tomlFile struct {
	Tasks []entry `toml:"tasks"`
}

// Load reads the task list at path. Defaults are applied and relative capture
// paths are resolved against the directory holding the list.
func Load(path string) ([]core.TaskConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read task list %s: %w", path, err)
	}

	var entries []entry
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		entries, err = decodeTOML(data)
	} else {
		entries, err = decodeJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}

	return build(entries, filepath.Dir(path)), nil
}

func decodeJSON(data []byte) ([]entry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var entries []entry
	if data[0] == '{' {
		var wrapped struct {
			Tasks []entry `json:"tasks"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Tasks, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func decodeTOML(data []byte) ([]entry, error) {
	var file tomlFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Tasks, nil
}

func build(entries []entry, baseDir string) []core.TaskConfig {
	out := make([]core.TaskConfig, 0, len(entries))
	for i, e := range entries {
		var loadErr error
		capture := e.HarFile
		if capture == "" {
			capture = e.CaptureFile
		} else if e.CaptureFile != "" && e.CaptureFile != e.HarFile {
			loadErr = fmt.Errorf("%w: task %d: har_file and capture_file disagree", ErrInvalid, i+1)
			capture = ""
		}
		if capture != "" && !filepath.IsAbs(capture) {
			capture = filepath.Join(baseDir, capture)
		}

		cfg := core.TaskConfig{
			Name:            strings.TrimSpace(e.Name),
			CaptureFile:     capture,
			Count:           e.Count,
			IntervalSeconds: e.IntervalSeconds,
			SuccessMsg:      e.SuccessMsg,
			FailMsg:         e.FailMsg,
			LoadErr:         loadErr,
		}
		out = append(out, cfg.WithDefaults())
	}
	return out
}
