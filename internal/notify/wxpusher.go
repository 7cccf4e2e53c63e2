package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	WxPusherURL = "http://wxpusher.zjiecode.com/api/send/message"

	wxPusherOK = 1000
)

// WxPusher posts messages through the WxPusher service.
type WxPusher struct {
	AppToken string
	UIDs     []string
	URL      string
	Client   *http.Client
}

// NewWxPusher builds a channel from a token and a comma-separated uid list.
func NewWxPusher(appToken, uids string) *WxPusher {
	return &WxPusher{AppToken: appToken, UIDs: SplitList(uids), URL: WxPusherURL}
}

func (w *WxPusher) Name() string { return "wxpusher" }

func (w *WxPusher) Configured() bool {
	return w.AppToken != "" && len(w.UIDs) > 0
}

type wxPusherPayload struct {
	AppToken    string      `json:"appToken"`
	Content     string      `json:"content"`
	Summary     string      `json:"summary"`
	ContentType ContentType `json:"contentType"`
	UIDs        []string    `json:"uids"`
}

func (w *WxPusher) Send(ctx context.Context, title, content string, ct ContentType) error {
	if !w.Configured() {
		return nil
	}
	body, err := json.Marshal(wxPusherPayload{
		AppToken:    w.AppToken,
		Content:     content,
		Summary:     title,
		ContentType: ct,
		UIDs:        w.UIDs,
	})
	if err != nil {
		return fmt.Errorf("encode wxpusher message: %w", err)
	}

	url := w.URL
	if url == "" {
		url = WxPusherURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build wxpusher request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := defaultHTTPClient(w.Client).Do(req)
	if err != nil {
		return fmt.Errorf("sending wxpusher notification: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading wxpusher response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("wxpusher API status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("decoding wxpusher response: invalid JSON")
	}
	result := gjson.ParseBytes(data)
	if code := result.Get("code").Int(); code != wxPusherOK {
		msg := result.Get("msg").String()
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("wxpusher API error %d: %s", code, msg)
	}
	return nil
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
