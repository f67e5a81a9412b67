// Package csvfeed reads manually uploaded bank statements.
//
// Every account has a directory named after its account reference below the
// drop directory. Every CSV file in it is one page, files are read in name
// order. The first line of each file is a header and is skipped.
package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ImShyMike/hcb/internal/feed"
	"github.com/ImShyMike/hcb/internal/importer/helpers"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/shopspring/decimal"
)

// Columns of the CSV files.
const (
	Date = iota
	ID
	Memo
	Outflow
	Inflow
	columns
)

const dateFormat = "2006-01-02"

type Provider struct {
	dir string
}

func New(dir string) *Provider {
	return &Provider{dir: dir}
}

func (p *Provider) Source() models.Source {
	return models.SourceCSV
}

func (p *Provider) ListTransactions(ctx context.Context, accountRef string, from, to time.Time, cursor string) (feed.Page, error) {
	if err := ctx.Err(); err != nil {
		return feed.Page{}, err
	}

	if p.dir == "" {
		return feed.Page{}, fmt.Errorf("%w: no import directory configured", feed.ErrMissingCredentials)
	}

	files, err := filepath.Glob(filepath.Join(p.dir, filepath.Base(accountRef), "*.csv"))
	if err != nil {
		return feed.Page{}, err
	}
	sort.Strings(files)

	index := 0
	if cursor != "" {
		index, err = strconv.Atoi(cursor)
		if err != nil {
			return feed.Page{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
	}

	if index >= len(files) {
		return feed.Page{}, nil
	}

	f, err := os.Open(files[index])
	if err != nil {
		return feed.Page{}, err
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return feed.Page{}, fmt.Errorf("%s: %w", filepath.Base(files[index]), err)
	}

	var page feed.Page
	for _, r := range records {
		if feed.Window(r.Date, from, to) {
			page.Records = append(page.Records, r)
		}
	}

	if index+1 < len(files) {
		page.NextCursor = strconv.Itoa(index + 1)
	}

	return page, nil
}

// Parse parses a statement. Amounts are decimal dollars.
func Parse(f io.Reader) ([]feed.Record, error) {
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = columns

	// We can reuse the array in the background to improve performance
	reader.ReuseRecord = true

	// Skip the header
	_, err := reader.Read()
	if err == io.EOF {
		return []feed.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read the header of the CSV: %w", err)
	}

	var records []feed.Record
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		// Parse errors carry their line already
		if err != nil {
			return nil, fmt.Errorf("could not read line in CSV: %w", err)
		}

		date, err := time.Parse(dateFormat, record[Date])
		if err != nil {
			return csvReadError(reader, fmt.Errorf("could not parse time: %w", err))
		}

		r := feed.Record{
			NativeID: strings.TrimSpace(record[ID]),
			Date:     date,
			Memo:     strings.TrimSpace(record[Memo]),
		}

		// Statements without transaction ids are identified by their content
		if r.NativeID == "" {
			r.NativeID = helpers.Sha256String(record...)
		}

		var amount decimal.Decimal
		switch {
		case record[Outflow] != "" && record[Inflow] != "":
			return csvReadError(reader, errors.New("both outflow and inflow are set for the transaction"))
		case record[Outflow] == "" && record[Inflow] == "":
			return csvReadError(reader, errors.New("no amount is set for the transaction"))
		case record[Outflow] != "":
			amount, err = decimal.NewFromString(record[Outflow])
			if err != nil {
				return csvReadError(reader, errors.New("outflow could not be parsed to a decimal"))
			}
			amount = amount.Neg()
		default:
			amount, err = decimal.NewFromString(record[Inflow])
			if err != nil {
				return csvReadError(reader, errors.New("inflow could not be parsed to a decimal"))
			}
		}

		cents := amount.Shift(2)
		if !cents.IsInteger() {
			return csvReadError(reader, errors.New("the amount has more than two decimal places"))
		}

		r.Amount = cents.IntPart()
		if r.Amount == 0 {
			return csvReadError(reader, errors.New("the amount for a transaction must not be 0"))
		}

		records = append(records, r)
	}

	return records, nil
}

// csvReadError returns the error with the line of the input it occurred in.
func csvReadError(r *csv.Reader, err error) ([]feed.Record, error) {
	line, _ := r.FieldPos(0)
	return nil, fmt.Errorf("error in line %d of the CSV: %w", line, err)
}
