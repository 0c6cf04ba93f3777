// Package notify delivers disclosure notifications to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"h1mon/internal/feed"
	logx "h1mon/pkg/logx"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultRatePerSec = 1

	embedColor  = 3447003 // blurple
	footerText  = "HackerOne Monitor"
	titlePrefix = "New Disclosure: "
)

// DeliveryError is a failed webhook POST: transport error or non-2xx
// response. The notifier never retries internally; retry policy belongs to
// the poll loop.
type DeliveryError struct {
	ReportID string
	Status   int // HTTP status if a response was received, else 0
	Err      error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("deliver report %s: http %d", e.ReportID, e.Status)
	}
	return fmt.Sprintf("deliver report %s: %v", e.ReportID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Config struct {
	WebhookURL string
	Timeout    time.Duration
	RatePerSec int
}

// Discord posts fixed-schema embeds to a webhook URL. Safe for use from a
// single goroutine (the poll loop); the limiter makes bursts well-behaved.
type Discord struct {
	webhookURL string
	hc         *http.Client
	limiter    *rate.Limiter
	log        logx.Logger
}

func NewDiscord(cfg Config, log logx.Logger) *Discord {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = DefaultRatePerSec
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Discord{
		webhookURL: cfg.WebhookURL,
		hc:         &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		log:        log,
	}
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title  string       `json:"title"`
	URL    string       `json:"url,omitempty"`
	Color  int          `json:"color"`
	Fields []embedField `json:"fields"`
	Footer struct {
		Text string `json:"text"`
	} `json:"footer"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Notify builds the embed for one report and performs a single POST.
func (d *Discord) Notify(ctx context.Context, r feed.Report) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return &DeliveryError{ReportID: r.ID, Err: err}
	}

	body, err := json.Marshal(buildPayload(r))
	if err != nil {
		return &DeliveryError{ReportID: r.ID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{ReportID: r.ID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.hc.Do(req)
	if err != nil {
		return &DeliveryError{ReportID: r.ID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{ReportID: r.ID, Status: resp.StatusCode}
	}

	d.log.Info("notification delivered",
		logx.String("report_id", r.ID),
		logx.String("program", r.Program),
	)
	return nil
}

func buildPayload(r feed.Report) webhookPayload {
	e := embed{
		Title: titlePrefix + Sanitize(r.Title),
		URL:   r.URL,
		Color: embedColor,
		Fields: []embedField{
			{Name: "Program", Value: Sanitize(r.Program), Inline: true},
			{Name: "Severity", Value: Sanitize(r.Severity), Inline: true},
			{Name: "Report ID", Value: "#" + r.ID, Inline: true},
		},
	}
	e.Footer.Text = footerText
	return webhookPayload{Embeds: []embed{e}}
}

// Sanitize strips characters with special meaning in Discord markdown so
// report titles can't break the embed formatting.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '`', '|', '>', '~':
			return -1
		}
		return r
	}, s)
}
