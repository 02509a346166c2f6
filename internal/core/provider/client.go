package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recfetch/internal/logger"
)

const (
	// PageLimit is the provider's hard cap on records per request.
	PageLimit = 500
	// MaxPages bounds the pagination loop against an upstream that never
	// advances its timestamps.
	MaxPages = 200

	pageDelay      = 50 * time.Millisecond
	requestTimeout = 30 * time.Second
	maxErrorDetail = 200
)

// Query identifies one consultation window against a provider instance.
type Query struct {
	BaseURL string
	Login   string
	Token   string
	Start   time.Time
	End     time.Time
}

// Client talks to the provider's status-report API.
type Client struct {
	http      *http.Client
	log       *logger.Logger
	pageLimit int
	maxPages  int
	pageDelay time.Duration
}

func NewClient() *Client {
	return &Client{
		http:      &http.Client{Timeout: requestTimeout},
		log:       logger.New("Provider"),
		pageLimit: PageLimit,
		maxPages:  MaxPages,
		pageDelay: pageDelay,
	}
}

// FetchPage requests one page of records for [windowStart, q.End]. A JSON
// null, an empty body, or a bare object all mean "no data" and come back as
// an empty slice; any other non-array payload is a ProtocolError.
func (c *Client) FetchPage(ctx context.Context, q Query, windowStart time.Time) ([]CallRecord, error) {
	endpoint := fmt.Sprintf("%s/api.php?acao=statusreport&login=%s&token=%s&offset=0&limit=%d",
		strings.TrimSuffix(q.BaseURL, "/"), url.QueryEscape(q.Login), url.QueryEscape(q.Token), c.pageLimit)

	payload, err := json.Marshal(map[string]string{
		"datainicio": windowStart.Format(TimeLayout),
		"datafim":    q.End.Format(TimeLayout),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}

	return decodeRecords(body)
}

func decodeRecords(body []byte) ([]CallRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var records []CallRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, &ProtocolError{Payload: errorDetail(trimmed)}
		}
		return records, nil
	case '{':
		// The provider answers a bare object on some no-data windows.
		return nil, nil
	default:
		return nil, &ProtocolError{Payload: errorDetail(trimmed)}
	}
}

// errorDetail extracts a structured error message when the body is JSON,
// otherwise a bounded snippet of raw text.
func errorDetail(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	s := string(trimmed)
	if len(s) > maxErrorDetail {
		s = s[:maxErrorDetail]
	}
	return s
}
