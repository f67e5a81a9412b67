// Package memfeed replays provider pages from memory.
package memfeed

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ImShyMike/hcb/internal/feed"
	"github.com/ImShyMike/hcb/internal/models"
)

type Provider struct {
	source models.Source

	mu    sync.Mutex
	pages map[string][][]feed.Record
	err   error
	calls int
}

func New(source models.Source) *Provider {
	return &Provider{
		source: source,
		pages:  make(map[string][][]feed.Record),
	}
}

// AddPage appends a page of records for accountRef.
func (p *Provider) AddPage(accountRef string, records ...feed.Record) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pages[accountRef] = append(p.pages[accountRef], records)
	return p
}

// Reset removes all pages of accountRef.
func (p *Provider) Reset(accountRef string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.pages, accountRef)
}

// Fail makes all following calls return err. A nil error heals the provider.
func (p *Provider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
}

// Calls returns how many pages have been requested.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}

func (p *Provider) Source() models.Source {
	return p.source
}

func (p *Provider) ListTransactions(ctx context.Context, accountRef string, from, to time.Time, cursor string) (feed.Page, error) {
	if err := ctx.Err(); err != nil {
		return feed.Page{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return feed.Page{}, p.err
	}

	index := 0
	if cursor != "" {
		i, err := strconv.Atoi(cursor)
		if err != nil {
			return feed.Page{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		index = i
	}

	pages := p.pages[accountRef]
	if index >= len(pages) {
		return feed.Page{}, nil
	}

	var page feed.Page
	for _, r := range pages[index] {
		if feed.Window(r.Date, from, to) {
			page.Records = append(page.Records, r)
		}
	}

	if index+1 < len(pages) {
		page.NextCursor = strconv.Itoa(index + 1)
	}

	return page, nil
}
