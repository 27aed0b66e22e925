package bankfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"renthub-platform/internal/settlement"
)

// HTTPSource fetches the transaction feed from the bank's history API.
// The endpoint is expected to accept a `cursor` query parameter and return
//
//	{"transactions": [{"id": ..., "description": ..., "amount_minor": ...,
//	 "posted_at": ...}], "next_cursor": "..."}
//
// sorted oldest first. Authentication is a bearer token.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type feedPage struct {
	Transactions []feedTransaction `json:"transactions"`
	NextCursor   string            `json:"next_cursor"`
}

type feedTransaction struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AmountMinor int64     `json:"amount_minor"`
	PostedAt    time.Time `json:"posted_at"`
}

func (s *HTTPSource) FetchNew(ctx context.Context, cursor string) ([]settlement.FeedLine, string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, cursor, fmt.Errorf("bankfeed: bad feed url: %w", err)
	}
	q := u.Query()
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, cursor, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, cursor, fmt.Errorf("bankfeed: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, cursor, fmt.Errorf("bankfeed: feed api status %d", resp.StatusCode)
	}

	var page feedPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, cursor, fmt.Errorf("bankfeed: decode page: %w", err)
	}

	lines := make([]settlement.FeedLine, 0, len(page.Transactions))
	for _, tx := range page.Transactions {
		if tx.ID == "" {
			continue
		}
		lines = append(lines, settlement.FeedLine{
			ID:          tx.ID,
			Description: tx.Description,
			AmountMinor: tx.AmountMinor,
			PostedAt:    tx.PostedAt,
		})
	}
	next := page.NextCursor
	if next == "" {
		next = cursor
	}
	return lines, next, nil
}
