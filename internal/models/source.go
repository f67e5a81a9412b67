package models

// Source identifies where raw transactions come from.
type Source string

const (
	SourcePlaid        Source = "plaid"  // bank aggregator feed
	SourceStripe       Source = "stripe" // card issuer feed
	SourceCSV          Source = "csv"    // manual CSV uploads
	SourceInvoice      Source = "invoice"
	SourceDonation     Source = "donation"
	SourceAchTransfer  Source = "ach_transfer"
	SourceCheck        Source = "check"
	SourceDisbursement Source = "disbursement"
	SourceBankFee      Source = "bank_fee"
)

// IsFeed is true for sources that are read from an external provider.
// All other sources are derived from entities in this database.
func (s Source) IsFeed() bool {
	switch s {
	case SourcePlaid, SourceStripe, SourceCSV:
		return true
	}
	return false
}

// IsCardIssuer is true for the card issuing feed.
func (s Source) IsCardIssuer() bool {
	return s == SourceStripe
}
