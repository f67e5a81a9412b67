package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/go-playground/validator/v10"
)

var ErrMissingCredentials = errors.New("the provider is missing credentials")

// Record is one transaction as reported by a provider.
type Record struct {
	NativeID   string         `json:"id" validate:"required,max=255"`
	Amount     int64          `json:"amount"`
	Date       time.Time      `json:"date" validate:"required"`
	Memo       string         `json:"memo" validate:"max=1024"`
	Pending    bool           `json:"pending"`
	Declined   bool           `json:"declined"`
	FeeWaived  bool           `json:"fee_waived"`
	LinkedCode string         `json:"linked_code" validate:"omitempty,hcbcode"`
	Payload    map[string]any `json:"payload"`
}

// Page is one page of records. An empty NextCursor means there are no more pages.
type Page struct {
	Records    []Record
	NextCursor string
}

// Provider lists the transactions of one source.
type Provider interface {
	Source() models.Source

	// ListTransactions returns the page at cursor of the records of
	// accountRef dated between from and to. The first page has an empty cursor.
	ListTransactions(ctx context.Context, accountRef string, from, to time.Time, cursor string) (Page, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hcbcode", func(fl validator.FieldLevel) bool {
		_, err := hcbcode.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks a record before it is stored.
func Validate(r Record) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("record %q is invalid: %w", r.NativeID, err)
	}
	return nil
}

// Window reports whether date lies in [from, to], compared by day.
func Window(date, from, to time.Time) bool {
	d := Day(date)
	return !d.Before(Day(from)) && !d.After(Day(to))
}

// Day returns midnight UTC of the day of t.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
