// Package feed fetches the most recent page of disclosed reports from
// HackerOne's public Hacktivity GraphQL endpoint.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	logx "h1mon/pkg/logx"
)

const (
	DefaultEndpoint = "https://hackerone.com/graphql"
	DefaultPageSize = 10
	DefaultTimeout  = 10 * time.Second

	// Browser-like headers; the endpoint is public but rejects obvious bots.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// queryTmpl asks for the N most recent disclosed reports, newest first.
const queryTmpl = `query {
  reports(
    first: %d,
    where: { disclosed_at: { _is_null: false } },
    order_by: { field: disclosed_at, direction: DESC }
  ) {
    nodes {
      _id
      title
      url
      disclosed_at
      severity {
        rating
      }
      team {
        handle
      }
    }
  }
}`

// FetchError wraps any failure of a fetch: transport, non-2xx status,
// malformed payload, or a GraphQL-level error. The caller decides the
// retry policy; the client never retries on its own.
type FetchError struct {
	Op     string // "request" | "status" | "decode" | "graphql"
	Status int    // HTTP status for Op == "status", else 0
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("feed fetch (%s): http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("feed fetch (%s): %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Config struct {
	Endpoint string
	PageSize int
	Timeout  time.Duration
}

// Client fetches Hacktivity pages. No side effects beyond the HTTP call.
type Client struct {
	endpoint string
	query    string
	hc       *http.Client
	log      logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		endpoint: cfg.Endpoint,
		query:    fmt.Sprintf(queryTmpl, cfg.PageSize),
		hc:       &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

type gqlRequest struct {
	Query string `json:"query"`
}

type gqlResponse struct {
	Data struct {
		Reports struct {
			Nodes []gqlNode `json:"nodes"`
		} `json:"reports"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type gqlNode struct {
	ID          json.Number `json:"_id"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	DisclosedAt string      `json:"disclosed_at"`
	Severity    *struct {
		Rating string `json:"rating"`
	} `json:"severity"`
	Team *struct {
		Handle string `json:"handle"`
	} `json:"team"`
}

// FetchRecent returns the current page of disclosed reports, normalized to
// newest-first regardless of upstream ordering.
func (c *Client) FetchRecent(ctx context.Context) ([]Report, error) {
	body, err := json.Marshal(gqlRequest{Query: c.query})
	if err != nil {
		return nil, &FetchError{Op: "request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Op: "status", Status: resp.StatusCode}
	}

	var out gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &FetchError{Op: "decode", Err: err}
	}
	if len(out.Errors) > 0 {
		return nil, &FetchError{Op: "graphql", Err: fmt.Errorf("%s", out.Errors[0].Message)}
	}

	reports := make([]Report, 0, len(out.Data.Reports.Nodes))
	for _, n := range out.Data.Reports.Nodes {
		r, err := n.toReport()
		if err != nil {
			return nil, &FetchError{Op: "decode", Err: err}
		}
		reports = append(reports, r)
	}

	// Normalize to newest-first by numeric id. IDs were validated above.
	sort.Slice(reports, func(i, j int) bool {
		a, _ := ParseID(reports[i].ID)
		b, _ := ParseID(reports[j].ID)
		return a > b
	})

	c.log.Debug("fetched hacktivity page", logx.Int("reports", len(reports)))
	return reports, nil
}

func (n gqlNode) toReport() (Report, error) {
	id := n.ID.String()
	if _, err := ParseID(id); err != nil {
		return Report{}, err
	}

	title := strings.TrimSpace(n.Title)
	if title == "" {
		title = "No Title"
	}

	program := "N/A"
	if n.Team != nil && strings.TrimSpace(n.Team.Handle) != "" {
		program = strings.TrimSpace(n.Team.Handle)
	}

	severity := "N/A"
	if n.Severity != nil && strings.TrimSpace(n.Severity.Rating) != "" {
		severity = capitalize(strings.TrimSpace(n.Severity.Rating))
	}

	url := strings.TrimSpace(n.URL)
	if url != "" && !strings.HasPrefix(url, "http") {
		url = "https://hackerone.com" + url
	}

	var disclosed time.Time
	if n.DisclosedAt != "" {
		// Best-effort; the timestamp is informational only.
		if t, err := time.Parse(time.RFC3339, n.DisclosedAt); err == nil {
			disclosed = t
		}
	}

	return Report{
		ID:          id,
		Program:     program,
		Severity:    severity,
		Title:       title,
		URL:         url,
		DisclosedAt: disclosed,
	}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
