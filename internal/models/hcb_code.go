package models

import (
	"github.com/ImShyMike/hcb/internal/hcbcode"
	"gorm.io/gorm"
)

// HcbCode is the view over all transactions sharing one HCB code. It is the
// handle comments, tags and receipts are attached to.
type HcbCode struct {
	Code                         hcbcode.Code
	CanonicalTransactions        []CanonicalTransaction
	CanonicalPendingTransactions []CanonicalPendingTransaction
}

func (h HcbCode) EntityRef() EntityRef {
	return EntityRef{Type: "hcb_code", ID: h.Code.String()}
}

func (h HcbCode) Kind() hcbcode.Kind {
	return h.Code.Kind()
}

// Amount is the sum of the settled transactions, or of the pending ones
// while nothing has settled.
func (h HcbCode) Amount() int64 {
	var sum int64
	if len(h.CanonicalTransactions) > 0 {
		for _, ct := range h.CanonicalTransactions {
			sum += ct.Amount
		}
		return sum
	}

	for _, p := range h.CanonicalPendingTransactions {
		if p.State != PendingStateDeclined {
			sum += p.Amount
		}
	}
	return sum
}

// LoadHcbCode loads all transactions sharing code.
func LoadHcbCode(db *gorm.DB, code hcbcode.Code) (HcbCode, error) {
	h := HcbCode{Code: code}

	err := db.Where("hcb_code = ?", code.String()).Order("date ASC, id ASC").Find(&h.CanonicalTransactions).Error
	if err != nil {
		return HcbCode{}, err
	}

	err = db.Where("hcb_code = ?", code.String()).Order("date ASC, id ASC").Find(&h.CanonicalPendingTransactions).Error
	if err != nil {
		return HcbCode{}, err
	}

	return h, nil
}
