// Package notify delivers the run report to push channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"checkin/internal/logging"
)

// ContentType tells a channel how to render the content.
type ContentType int

const (
	Text     ContentType = 1
	HTML     ContentType = 2
	Markdown ContentType = 3
)

func (c ContentType) String() string {
	switch c {
	case Text:
		return "text"
	case HTML:
		return "html"
	case Markdown:
		return "markdown"
	}
	return fmt.Sprintf("ContentType(%d)", int(c))
}

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 10 * time.Second

// Notifier sends one message.
type Notifier interface {
	Send(ctx context.Context, title, content string, ct ContentType) error
}

// Channel is a named Notifier that may lack credentials.
type Channel interface {
	Notifier
	Name() string
	Configured() bool
}

// Nop discards every message.
type Nop struct{}

func (Nop) Send(context.Context, string, string, ContentType) error { return nil }

// Manager fans a message out to every configured channel.
type Manager struct {
	channels []Channel
	log      logging.Logger
}

// NewManager keeps the configured channels and logs the skipped ones.
func NewManager(log logging.Logger, channels ...Channel) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	m := &Manager{log: log}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if !ch.Configured() {
			log.Info("notification channel not configured, skipping", "channel", ch.Name())
			continue
		}
		log.Info("notification channel enabled", "channel", ch.Name())
		m.channels = append(m.channels, ch)
	}
	return m
}

// Channels returns the names of the enabled channels.
func (m *Manager) Channels() []string {
	names := make([]string, len(m.channels))
	for i, ch := range m.channels {
		names[i] = ch.Name()
	}
	return names
}

// Send delivers to every channel. A failing channel does not stop the others;
// all failures are logged and joined into the returned error.
func (m *Manager) Send(ctx context.Context, title, content string, ct ContentType) error {
	if len(m.channels) == 0 {
		m.log.Warn("no notification channel enabled, report not sent")
		return nil
	}
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(ctx, title, content, ct); err != nil {
			m.log.Error("notification failed", "channel", ch.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		m.log.Info("notification sent", "channel", ch.Name())
	}
	return errors.Join(errs...)
}

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: DefaultTimeout}
}
