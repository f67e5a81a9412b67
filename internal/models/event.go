package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrEventSlugNotUnique       = errors.New("the event slug must be unique")
	ErrSponsorshipFeeOutOfRange = errors.New("the sponsorship fee must be at least 0 and less than 1")
)

// Event is an organizational sub-ledger. Every canonical transaction is
// attributed to at most one event.
type Event struct {
	DefaultModel
	Name string `json:"name"`
	Slug string `json:"slug" gorm:"uniqueIndex"`

	// SponsorshipFee is the share of revenue the platform keeps, e.g. 0.07
	SponsorshipFee decimal.Decimal `json:"sponsorshipFee" gorm:"type:DECIMAL(20,8)"`
}

func (e *Event) BeforeSave(_ *gorm.DB) error {
	e.Name = strings.TrimSpace(e.Name)
	e.Slug = strings.TrimSpace(e.Slug)

	if e.SponsorshipFee.IsNegative() || e.SponsorshipFee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ErrSponsorshipFeeOutOfRange
	}

	return nil
}

func (e Event) EntityRef() EntityRef {
	return ref("event", e.ID)
}

// Sponsor pays invoices to an event.
type Sponsor struct {
	DefaultModel
	Name    string `json:"name"`
	EventID uint   `json:"eventId"`
	Event   Event  `json:"-"`
}

func (s *Sponsor) BeforeSave(_ *gorm.DB) error {
	s.Name = strings.TrimSpace(s.Name)
	return nil
}

// BankAccount is an account observed by one or more feeds.
type BankAccount struct {
	DefaultModel
	Name       string `json:"name"`
	Source     Source `json:"source" gorm:"uniqueIndex:idx_bank_account_source_ref"`
	AccountRef string `json:"accountRef" gorm:"uniqueIndex:idx_bank_account_source_ref"`

	// UniqueBankIdentifier identifies the real world account. Feeds observing
	// the same account share it, which is what enables cross-feed deduplication.
	UniqueBankIdentifier string `json:"uniqueBankIdentifier" gorm:"index;not null"`
	Syncing              bool   `json:"syncing"`
}

func (b *BankAccount) BeforeSave(_ *gorm.DB) error {
	b.UniqueBankIdentifier = strings.ToUpper(strings.TrimSpace(b.UniqueBankIdentifier))
	return nil
}
