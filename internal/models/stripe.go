package models

// StripeCardholder is a person holding cards issued for an event.
type StripeCardholder struct {
	DefaultModel
	StripeID string `json:"stripeId" gorm:"uniqueIndex"`
	EventID  uint   `json:"eventId"`
	Event    Event  `json:"-"`
	Name     string `json:"name"`
}

func (c StripeCardholder) EntityRef() EntityRef {
	return ref("stripe_cardholder", c.ID)
}

type StripeCard struct {
	DefaultModel
	StripeID           string           `json:"stripeId" gorm:"uniqueIndex"`
	StripeCardholderID uint             `json:"stripeCardholderId"`
	StripeCardholder   StripeCardholder `json:"-"`
	EventID            uint             `json:"eventId"`
	Event              Event            `json:"-"`
	Last4              string           `json:"last4"`
}
