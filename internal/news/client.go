// Package news fetches recent articles about an organization from a
// NewsAPI-compatible endpoint.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scribehq.app/scribe/common/id"
	"scribehq.app/scribe/core/config"
	"scribehq.app/scribe/internal/model"
)

// Searcher finds recent news documents for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.Document, error)
}

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// Client talks to a NewsAPI-compatible "everything" endpoint. Safe for
// concurrent use.
type Client struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
}

var _ Searcher = &Client{}

func NewClient(cfg config.NewsConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		client:   &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Status   string    `json:"status"`
	Articles []article `json:"articles"`
}

type article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Search queries the endpoint and returns documents newest-first, as served.
// Transient failures (429, 5xx, network errors) are retried with exponential
// backoff; other client errors fail immediately.
func (c *Client) Search(ctx context.Context, query string) ([]model.Document, error) {
	endpoint := c.baseURL + "/everything?" + url.Values{
		"q":        {query},
		"sortBy":   {"publishedAt"},
		"language": {"en"},
		"pageSize": {strconv.Itoa(c.pageSize)},
	}.Encode()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff << (attempt - 1)
			slog.InfoContext(ctx, "retrying news search", "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		docs, retryable, err := c.doSearch(ctx, endpoint)
		if err == nil {
			slog.InfoContext(ctx, "news search completed", "query", query, "documents", len(docs))
			return docs, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("news search failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doSearch(ctx context.Context, endpoint string) ([]model.Document, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build news request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("news request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("news endpoint returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("news endpoint returned %d: %s", resp.StatusCode, body)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("decode news response: %w", err)
	}

	docs := make([]model.Document, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		if a.Title == "" {
			continue
		}
		docs = append(docs, model.Document{
			ID:          id.New(),
			Title:       a.Title,
			URL:         a.URL,
			Summary:     a.Description,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return docs, false, nil
}
