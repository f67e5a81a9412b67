package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrMemoRuleEmpty = errors.New("the match of an event memo rule must not be empty")

// EventMemoRule attributes transactions without a linked entity to an
// event when their memo matches. Rules with a lower priority value are
// evaluated first.
type EventMemoRule struct {
	DefaultModel
	Priority uint   `json:"priority" gorm:"index"`
	Match    string `json:"match"` // glob pattern, "*" matches any sequence
	EventID  uint   `json:"eventId"`
	Event    Event  `json:"-"`
}

func (r *EventMemoRule) BeforeSave(_ *gorm.DB) error {
	r.Match = strings.ToUpper(strings.TrimSpace(r.Match))
	if r.Match == "" {
		return ErrMemoRuleEmpty
	}
	return nil
}
