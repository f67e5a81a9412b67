// Package hcbcode implements the HCB-code, the stable handle for a group of
// canonical and canonical pending transactions.
//
// Codes have the format HCB-<type>-<id> where type is a three digit
// discriminator and id is the identifier of the source entity.
package hcbcode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrInvalidFormat = errors.New("not a valid HCB code")
	ErrUnknownType   = errors.New("unknown HCB code type")
)

// Type codes as they are written into the code string.
const (
	UnknownCode            = "000"
	InvoiceCode            = "100"
	DonationCode           = "200"
	PartnerDonationCode    = "201"
	AchTransferCode        = "300"
	CheckCode              = "400"
	IncreaseCheckCode      = "401"
	CheckDepositCode       = "402"
	DisbursementCode       = "500"
	StripeCardCode         = "600"
	StripeForceCaptureCode = "601"
	BankFeeCode            = "700"
	IncomingBankFeeCode    = "701"
	FeeRevenueCode         = "702"
	AchPaymentCode         = "800"
)

// Kind is the closed set of things a transaction can be linked to.
type Kind int

const (
	Unknown Kind = iota
	Invoice
	Donation
	AchTransfer
	Check
	Disbursement
	CardCharge
	BankFee
)

func (k Kind) String() string {
	switch k {
	case Invoice:
		return "invoice"
	case Donation:
		return "donation"
	case AchTransfer:
		return "ach_transfer"
	case Check:
		return "check"
	case Disbursement:
		return "disbursement"
	case CardCharge:
		return "card_charge"
	case BankFee:
		return "bank_fee"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// TypeCode returns the canonical discriminator written for new codes of this kind.
func (k Kind) TypeCode() string {
	switch k {
	case Invoice:
		return InvoiceCode
	case Donation:
		return DonationCode
	case AchTransfer:
		return AchTransferCode
	case Check:
		return CheckCode
	case Disbursement:
		return DisbursementCode
	case CardCharge:
		return StripeCardCode
	case BankFee:
		return BankFeeCode
	case Unknown:
		return UnknownCode
	}
	return UnknownCode
}

// HasNumericEntity is true for kinds whose id references a local entity row.
// Card charges are keyed by the card issuer's authorization id instead.
func (k Kind) HasNumericEntity() bool {
	switch k {
	case Invoice, Donation, AchTransfer, Check, Disbursement, BankFee:
		return true
	case CardCharge, Unknown:
		return false
	}
	return false
}

// KindForType decodes a type discriminator.
func KindForType(t string) (Kind, error) {
	switch t {
	case UnknownCode:
		return Unknown, nil
	case InvoiceCode:
		return Invoice, nil
	case DonationCode, PartnerDonationCode:
		return Donation, nil
	case AchTransferCode, AchPaymentCode:
		return AchTransfer, nil
	case CheckCode, IncreaseCheckCode, CheckDepositCode:
		return Check, nil
	case DisbursementCode:
		return Disbursement, nil
	case StripeCardCode, StripeForceCaptureCode:
		return CardCharge, nil
	case BankFeeCode, IncomingBankFeeCode, FeeRevenueCode:
		return BankFee, nil
	}
	return Unknown, fmt.Errorf("%w: %s", ErrUnknownType, t)
}

var (
	codeRegexp   = regexp.MustCompile(`^HCB-(\d{3})-([A-Za-z0-9_]+)$`)
	inTextRegexp = regexp.MustCompile(`HCB-(\d{3})-([A-Za-z0-9_]+)`)
)

// Code is a parsed HCB code.
type Code struct {
	Type string // hcb_i1
	ID   string // hcb_i2
}

// New builds the code for an entity of the given kind.
func New(kind Kind, id string) Code {
	return Code{Type: kind.TypeCode(), ID: id}
}

// ForEntity builds the code for a numeric entity id.
func ForEntity(kind Kind, id uint) Code {
	return New(kind, strconv.FormatUint(uint64(id), 10))
}

// Parse parses a full code string.
func Parse(s string) (Code, error) {
	m := codeRegexp.FindStringSubmatch(s)
	if m == nil {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	if _, err := KindForType(m[1]); err != nil {
		return Code{}, err
	}

	return Code{Type: m[1], ID: m[2]}, nil
}

// Find returns the first valid code embedded in free text, e.g. a bank memo.
func Find(text string) (Code, bool) {
	for _, m := range inTextRegexp.FindAllStringSubmatch(text, -1) {
		if _, err := KindForType(m[1]); err == nil {
			return Code{Type: m[1], ID: m[2]}, true
		}
	}
	return Code{}, false
}

func (c Code) String() string {
	return fmt.Sprintf("HCB-%s-%s", c.Type, c.ID)
}

// Kind decodes the type discriminator. Codes built by Parse or New always decode.
func (c Code) Kind() Kind {
	k, err := KindForType(c.Type)
	if err != nil {
		return Unknown
	}
	return k
}

// EntityID returns the numeric entity id for kinds that reference local rows.
func (c Code) EntityID() (uint, bool) {
	if !c.Kind().HasNumericEntity() {
		return 0, false
	}

	id, err := strconv.ParseUint(c.ID, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// IsUnknown is true for synthesized HCB-000 codes.
func (c Code) IsUnknown() bool {
	return c.Type == UnknownCode
}
