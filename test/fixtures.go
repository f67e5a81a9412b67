package test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ImShyMike/hcb/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Payload encodes a raw transaction payload.
func Payload(t *testing.T, v map[string]any) datatypes.JSON {
	b, err := json.Marshal(v)
	require.Nil(t, err)
	return datatypes.JSON(b)
}

func CreateEvent(t *testing.T, db *gorm.DB, name, sponsorshipFee string) models.Event {
	e := models.Event{
		Name:           name,
		Slug:           strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		SponsorshipFee: decimal.RequireFromString(sponsorshipFee),
	}
	require.Nil(t, db.Create(&e).Error, "Event could not be created")
	return e
}

func CreateBankAccount(t *testing.T, db *gorm.DB, source models.Source, ref, ubi string) models.BankAccount {
	a := models.BankAccount{
		Name:                 ref,
		Source:               source,
		AccountRef:           ref,
		UniqueBankIdentifier: ubi,
		Syncing:              true,
	}
	require.Nil(t, db.Create(&a).Error, "Bank account could not be created")
	return a
}

func CreateRaw(t *testing.T, db *gorm.DB, raw models.RawTransaction) models.RawTransaction {
	if raw.LastSeenAt.IsZero() {
		raw.LastSeenAt = raw.Date
	}
	require.Nil(t, db.Create(&raw).Error, "Raw transaction could not be created")
	return raw
}

func CreateCanonical(t *testing.T, db *gorm.DB, ct models.CanonicalTransaction) models.CanonicalTransaction {
	require.Nil(t, db.Create(&ct).Error, "Canonical transaction could not be created")
	return ct
}

func CreatePending(t *testing.T, db *gorm.DB, raw models.RawTransaction, code string) models.CanonicalPendingTransaction {
	p := models.CanonicalPendingTransaction{
		RawTransactionID: raw.ID,
		Amount:           raw.Amount,
		Date:             raw.Date,
		Memo:             raw.Memo,
		FeeWaived:        raw.FeeWaived,
	}
	if code != "" {
		p.HcbCode = &code
	}
	require.Nil(t, db.Create(&p).Error, "Canonical pending transaction could not be created")
	return p
}

func MapToEvent(t *testing.T, db *gorm.DB, ct models.CanonicalTransaction, event models.Event) models.CanonicalEventMapping {
	m := models.CanonicalEventMapping{CanonicalTransactionID: ct.ID, EventID: event.ID}
	require.Nil(t, db.Create(&m).Error, "Canonical event mapping could not be created")
	return m
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
