package memo

import (
	"strings"
	"unicode"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Markers the bank puts into memos of transactions it creates itself.
const (
	hackClubFeeMarker   = "HACK CLUB BANK FEE TO ACCOUNT"
	checkClearingMarker = "FROM DDA#80007609524 ON"
	disbursementMarker  = "HCB DISBURSE"
)

var (
	donationMarkers     = []string{"HACK CLUB BANK DONATE", "HACKC DONATE"}
	verificationMarkers = []string{"ACCTVERIFY", "ACCT VERIFY", "VERIFYBANK", "VERIFICATION"}
)

// Account verification deposits are always below one dollar.
const verificationLimit = 100

// Prefixes aggregators add to card and ACH memos. Only the first matching
// prefix is removed.
var prefixes = []string{
	"DEBIT CARD PURCHASE ",
	"POS PURCHASE ",
	"CHECKCARD ",
	"ACH DEBIT ",
	"ACH CREDIT ",
	"POS ",
}

func IsHackClubFee(memo string) bool {
	return strings.Contains(strings.ToUpper(memo), hackClubFeeMarker)
}

func IsCheckClearing(memo string) bool {
	return strings.Contains(strings.ToUpper(memo), checkClearingMarker)
}

func IsDisbursement(memo string) bool {
	return strings.Contains(strings.ToUpper(memo), disbursementMarker)
}

func IsDonation(memo string) bool {
	return containsAny(strings.ToUpper(memo), donationMarkers)
}

// IsAccountVerification detects the micro deposits platforms send to
// verify bank accounts.
func IsAccountVerification(memo string, amount int64) bool {
	if amount >= verificationLimit || amount <= -verificationLimit {
		return false
	}
	return containsAny(strings.ToUpper(memo), verificationMarkers)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Input is everything a friendly memo can be derived from.
type Input struct {
	Memo   string
	Amount int64
	Kind   hcbcode.Kind

	// Entity is the linked entity, nil if there is none
	Entity models.Entity

	// Merchant is the merchant name of card charges
	Merchant string
}

// Friendly derives the memo shown to users.
func Friendly(in Input) string {
	if in.Entity != nil {
		return in.Entity.Describe(in.Amount)
	}

	if in.Kind == hcbcode.CardCharge && strings.TrimSpace(in.Merchant) != "" {
		return Clean(in.Merchant)
	}

	switch {
	case IsHackClubFee(in.Memo):
		return "Hack Club Bank fee"
	case IsDonation(in.Memo):
		return "Donation"
	case IsDisbursement(in.Memo):
		return "Transfer"
	case IsCheckClearing(in.Memo):
		return "Check deposit"
	}

	return Clean(in.Memo)
}

// Clean removes aggregator prefixes and reference numbers from a memo and
// title cases the rest. Memos without any words are returned trimmed.
func Clean(memo string) string {
	upper := strings.ToUpper(strings.Join(strings.Fields(memo), " "))
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p) {
			upper = strings.TrimPrefix(upper, p)
			break
		}
	}

	var words []string
	for _, w := range strings.Fields(upper) {
		if strings.IndexFunc(w, unicode.IsLetter) >= 0 {
			words = append(words, w)
		}
	}

	if len(words) == 0 {
		return strings.TrimSpace(memo)
	}

	// Casers are stateful, so every call gets its own
	return cases.Title(language.English).String(strings.Join(words, " "))
}
