package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Slack delivers alerts to a Slack incoming webhook as a single attachment.
// An empty webhook URL disables delivery (Notify returns ErrNotConfigured).
type Slack struct {
	client *http.Client
	url    string
	footer string
}

// SlackOption configures a Slack notifier.
type SlackOption func(*Slack)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) SlackOption {
	return func(s *Slack) { s.client = c }
}

// WithFooter sets the attachment footer text.
func WithFooter(footer string) SlackOption {
	return func(s *Slack) { s.footer = footer }
}

// NewSlack creates a Slack webhook notifier. The per-call deadline comes
// from the context the dispatcher passes in; the client itself carries a
// generous upper bound.
func NewSlack(url string, opts ...SlackOption) *Slack {
	s := &Slack{
		client: &http.Client{Timeout: 30 * time.Second},
		url:    url,
		footer: "poolwatch",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Ts     int64        `json:"ts"`
	Footer string       `json:"footer"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify POSTs the alert to the webhook. Any non-2xx response or transport
// error is a delivery failure.
func (s *Slack) Notify(ctx context.Context, a Alert) error {
	if s.url == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(s.payload(a))
	if err != nil {
		return fmt.Errorf("slack: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (s *Slack) payload(a Alert) slackPayload {
	// Stamp the attachment with the log event time when the alert carries
	// one, falling back to delivery time.
	ts := a.LoggedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	att := slackAttachment{
		Color:  colorFor(a.Severity),
		Title:  a.Title(),
		Text:   a.Message(),
		Ts:     ts.Unix(),
		Footer: s.footer,
	}

	switch a.Type {
	case TypeFailover:
		att.Fields = []slackField{
			{Title: "From Pool", Value: a.Failover.From.String(), Short: true},
			{Title: "To Pool", Value: a.Failover.To.String(), Short: true},
		}
	case TypeErrorRate:
		att.Fields = []slackField{
			{Title: "Error Rate", Value: fmt.Sprintf("%.1f%%", a.ErrorRate.Rate), Short: true},
			{Title: "Threshold", Value: fmt.Sprintf("%.1f%%", a.ErrorRate.Threshold), Short: true},
			{Title: "Errors", Value: fmt.Sprintf("%d/%d", a.ErrorRate.Errors, a.ErrorRate.Window), Short: true},
		}
	}

	if !a.LoggedAt.IsZero() {
		att.Fields = append(att.Fields, slackField{
			Title: "Logged At",
			Value: a.LoggedAt.Format(time.RFC3339),
			Short: true,
		})
	}
	return slackPayload{Attachments: []slackAttachment{att}}
}

func colorFor(sev Severity) string {
	switch sev {
	case SeverityCritical:
		return "danger"
	default:
		return "warning"
	}
}
