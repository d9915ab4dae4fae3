package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/ledger"
)

// HTTPProgressFetcher reads progress from the server's member endpoint.
type HTTPProgressFetcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProgressFetcher(serverURL string, client *http.Client) *HTTPProgressFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProgressFetcher{baseURL: strings.TrimRight(serverURL, "/"), client: client}
}

func (f *HTTPProgressFetcher) FetchProgress(ctx context.Context, memberID string) (*ledger.MemberProgress, error) {
	u := fmt.Sprintf("%s/api/v1/members/%s/progress", f.baseURL, url.PathEscape(memberID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("progress request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var p ledger.MemberProgress
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &p, nil
}
