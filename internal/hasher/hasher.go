// Package hasher derives the uniform identity of raw transactions.
package hasher

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ImShyMike/hcb/internal/importer/helpers"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const batchSize = 500

// UniqueBankIdentifier returns the identifier of the account the money of
// raw moved on. Sources without a bank account are their own account.
func UniqueBankIdentifier(raw models.RawTransaction) string {
	if raw.BankAccount != nil && raw.BankAccount.UniqueBankIdentifier != "" {
		return raw.BankAccount.UniqueBankIdentifier
	}
	return strings.ToUpper(string(raw.Source))
}

// NormalizeMemo upper cases the memo and collapses whitespace, so that
// sources formatting the same memo differently hash equally.
func NormalizeMemo(memo string) string {
	return strings.ToUpper(strings.Join(strings.Fields(memo), " "))
}

// PrimaryHash is shared by all sources reporting the same movement of money
// on the same account.
func PrimaryHash(ubi string, date time.Time, amount int64, memo string) string {
	return helpers.Sha256String(ubi, date.UTC().Format(time.DateOnly), strconv.FormatInt(amount, 10), NormalizeMemo(memo))
}

// SecondaryHash identifies the record within its source.
func SecondaryHash(source models.Source, nativeID string) string {
	return helpers.Sha256String(string(source), nativeID)
}

// Hash returns the hashed transaction of raw, creating it if there is none.
//
// Hashed transactions of settled records are never changed. A snapshot taken
// while the record was pending is refreshed once it has settled.
func Hash(db *gorm.DB, raw models.RawTransaction) (models.HashedTransaction, error) {
	if raw.BankAccountID != nil && raw.BankAccount == nil {
		var account models.BankAccount
		if err := db.First(&account, *raw.BankAccountID).Error; err != nil {
			return models.HashedTransaction{}, err
		}
		raw.BankAccount = &account
	}

	ubi := UniqueBankIdentifier(raw)
	primary := PrimaryHash(ubi, raw.Date, raw.Amount, raw.Memo)

	var hashed models.HashedTransaction
	err := models.Atomic(db, func(tx *gorm.DB) error {
		existing, err := models.HashedTransactionsForRaw(tx, raw.ID)
		if err != nil {
			return err
		}

		if len(existing) == 0 {
			hashed = models.HashedTransaction{
				RawTransactionID:     raw.ID,
				Source:               raw.Source,
				UniqueBankIdentifier: ubi,
				PrimaryHash:          primary,
				SecondaryHash:        SecondaryHash(raw.Source, raw.NativeID),
				Amount:               raw.Amount,
				Date:                 raw.Date,
				Pending:              raw.Pending,
			}
			return tx.Create(&hashed).Error
		}

		hashed = existing[0]
		if !hashed.Pending || raw.Pending {
			return nil
		}

		hashed.UniqueBankIdentifier = ubi
		hashed.PrimaryHash = primary
		hashed.Amount = raw.Amount
		hashed.Date = raw.Date
		hashed.Pending = false
		return tx.Model(&hashed).Select("UniqueBankIdentifier", "PrimaryHash", "Amount", "Date", "Pending").Updates(&hashed).Error
	})

	return hashed, err
}

// Run hashes all raw transactions dated in [from, to].
func Run(ctx context.Context, db *gorm.DB, from, to time.Time) (int, error) {
	count := 0

	var batch []models.RawTransaction
	result := db.WithContext(ctx).
		Preload("BankAccount").
		Where("date >= ? AND date <= ?", from, to).
		Order("id ASC").
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			for _, raw := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}

				if _, err := Hash(db, raw); err != nil {
					log.Error().Err(err).Uint("raw", raw.ID).Msg("raw transaction could not be hashed")
					continue
				}
				count++
			}
			return nil
		})

	return count, result.Error
}
