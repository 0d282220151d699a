// Package profiles is the client adapter for the out-of-scope talent admin
// system (spec.md §1/§6: "the relational storage of talent profiles" is an
// external collaborator, mutated by an out-of-scope admin system). It
// implements search.ProfileStore and indexmanager.ProfileSource over plain
// HTTP+JSON, grounded on the teacher's embedding.openAIProvider/anthropic
// client shape (a thin REST client wrapping net/http, no ORM) rather than
// owning a database of its own.
package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"castingai/internal/apierr"
	"castingai/internal/domain"
)

// Config points the client at the admin system's base URL.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a thin REST client over the external talent profile system.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a Client. A zero-value Timeout defaults to 10s.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = cfg.Timeout
	return &Client{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, http: httpClient}
}

// Get fetches one talent profile by id, satisfying both search.ProfileStore
// and indexmanager.ProfileSource.
func (c *Client) Get(ctx context.Context, id string) (domain.TalentProfile, bool, error) {
	var profile domain.TalentProfile
	status, err := c.do(ctx, http.MethodGet, "/talents/"+url.PathEscape(id), nil, &profile)
	if err != nil {
		return domain.TalentProfile{}, false, err
	}
	if status == http.StatusNotFound {
		return domain.TalentProfile{}, false, nil
	}
	return profile, true, nil
}

// Scan lists talents matching criteria, satisfying search.ProfileStore's
// fallback-scan path (used when C1/C3 degrade).
func (c *Client) Scan(ctx context.Context, criteria domain.SearchCriteria) ([]domain.TalentProfile, error) {
	q := url.Values{}
	if criteria.Gender != "" {
		q.Set("gender", criteria.Gender)
	}
	if criteria.Location != "" {
		q.Set("location", criteria.Location)
	}
	for _, lang := range criteria.Languages {
		q.Add("language", lang)
	}
	var profiles []domain.TalentProfile
	path := "/talents"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	if _, err := c.do(ctx, http.MethodGet, path, nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// ScanAll lists every active talent, satisfying indexmanager.ProfileSource's
// reindex/optimize full-corpus reads.
func (c *Client) ScanAll(ctx context.Context) ([]domain.TalentProfile, error) {
	var profiles []domain.TalentProfile
	if _, err := c.do(ctx, http.MethodGet, "/talents?status=active", nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// MarkArchived flags a talent archived after archival maintenance decides
// it's been inactive too long (spec §4.6).
func (c *Client) MarkArchived(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/talents/"+url.PathEscape(id)+"/archive", nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, apierr.Wrap(apierr.Internal, "marshal profile request", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "build profile request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, apierr.Wrap(apierr.ProviderUnavailable, "talent profile system unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, apierr.New(apierr.ProviderUnavailable, fmt.Sprintf("talent profile system returned %d", resp.StatusCode))
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, apierr.Wrap(apierr.ProviderUnavailable, "decode talent profile response", err)
	}
	return resp.StatusCode, nil
}
