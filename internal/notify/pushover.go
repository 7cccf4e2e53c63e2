package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	PushoverURL = "https://api.pushover.net/1/messages.json"

	// MaxTitleLen is the maximum length for a Pushover notification title.
	MaxTitleLen = 250

	// MaxMessageLen is the maximum length for a Pushover notification message.
	MaxMessageLen = 1024
)

// Pushover posts messages through the Pushover API.
type Pushover struct {
	AppToken string
	UserKey  string
	URL      string
	Client   *http.Client
}

func NewPushover(appToken, userKey string) *Pushover {
	return &Pushover{AppToken: appToken, UserKey: userKey, URL: PushoverURL}
}

func (p *Pushover) Name() string { return "pushover" }

func (p *Pushover) Configured() bool {
	return p.AppToken != "" && p.UserKey != ""
}

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors,omitempty"`
}

func (p *Pushover) Send(ctx context.Context, title, content string, ct ContentType) error {
	if !p.Configured() {
		return nil
	}

	form := url.Values{
		"token":   {p.AppToken},
		"user":    {p.UserKey},
		"title":   {truncateRunes(title, MaxTitleLen)},
		"message": {truncateRunes(content, MaxMessageLen)},
	}
	if ct == HTML {
		form.Set("html", "1")
	}

	endpoint := p.URL
	if endpoint == "" {
		endpoint = PushoverURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := defaultHTTPClient(p.Client).Do(req)
	if err != nil {
		return fmt.Errorf("sending pushover notification: %w", err)
	}
	defer resp.Body.Close()

	var result pushoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding pushover response: %w", err)
	}
	if result.Status != 1 {
		return fmt.Errorf("pushover API error: %s", strings.Join(result.Errors, "; "))
	}
	return nil
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
