// Package httpfeed reads transactions from the paginated JSON APIs of the
// bank aggregator and the card issuer.
package httpfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ImShyMike/hcb/internal/feed"
	"github.com/ImShyMike/hcb/internal/models"
)

var ErrUnexpectedStatus = errors.New("the provider responded with an unexpected status")

const dateFormat = "2006-01-02"

type response struct {
	Records    []feed.Record `json:"records"`
	NextCursor string        `json:"next_cursor"`
}

type Provider struct {
	source  models.Source
	baseURL string
	token   string
	client  *http.Client
}

// New creates a provider for source. A nil client uses a client with a
// one minute timeout.
func New(source models.Source, baseURL, token string, client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}

	return &Provider{
		source:  source,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

func (p *Provider) Source() models.Source {
	return p.source
}

func (p *Provider) ListTransactions(ctx context.Context, accountRef string, from, to time.Time, cursor string) (feed.Page, error) {
	if p.baseURL == "" || p.token == "" {
		return feed.Page{}, fmt.Errorf("%w: %s feed URL or token not set", feed.ErrMissingCredentials, p.source)
	}

	query := url.Values{}
	query.Set("from", from.UTC().Format(dateFormat))
	query.Set("to", to.UTC().Format(dateFormat))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	u := fmt.Sprintf("%s/accounts/%s/transactions?%s", p.baseURL, url.PathEscape(accountRef), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return feed.Page{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return feed.Page{}, fmt.Errorf("%s feed request failed: %w", p.source, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return feed.Page{}, fmt.Errorf("%w: %s feed rejected the token", feed.ErrMissingCredentials, p.source)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return feed.Page{}, fmt.Errorf("%w: %s feed returned %d: %s", ErrUnexpectedStatus, p.source, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return feed.Page{}, fmt.Errorf("%s feed response could not be decoded: %w", p.source, err)
	}

	return feed.Page{Records: r.Records, NextCursor: r.NextCursor}, nil
}
