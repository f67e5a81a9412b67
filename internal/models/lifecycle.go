package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNoLifecycle      = errors.New("the entity has no lifecycle")
	ErrInvalidEntityRef = errors.New("invalid entity reference, expected type:id")
)

// Lifecycle is an entity that moves through states by named events.
type Lifecycle interface {
	Commentable
	Transition(event string) error
}

// ParseEntityRef parses a reference of the form type:id, e.g. ach_transfer:55.
func ParseEntityRef(s string) (EntityRef, error) {
	t, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || t == "" {
		return EntityRef{}, fmt.Errorf("%w: %q", ErrInvalidEntityRef, s)
	}

	if _, err := strconv.ParseUint(id, 10, 0); err != nil {
		return EntityRef{}, fmt.Errorf("%w: %q", ErrInvalidEntityRef, s)
	}

	return EntityRef{Type: t, ID: id}, nil
}

func newLifecycle(entityType string) (Lifecycle, bool) {
	switch entityType {
	case "invoice":
		return &Invoice{}, true
	case "donation":
		return &Donation{}, true
	case "ach_transfer":
		return &AchTransfer{}, true
	case "check":
		return &Check{}, true
	case "disbursement":
		return &Disbursement{}, true
	case "bank_fee":
		return &BankFee{}, true
	case "g_suite":
		return &GSuite{}, true
	}
	return nil, false
}

// TransitionEntity fires event on the entity referenced by r and stores its
// new state. If comment is not empty, it is attached to the entity.
func TransitionEntity(db *gorm.DB, r EntityRef, event, comment string) (Lifecycle, error) {
	entity, ok := newLifecycle(r.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLifecycle, r.Type)
	}

	id, err := strconv.ParseUint(r.ID, 10, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntityRef, r.String())
	}

	err = Atomic(db, func(tx *gorm.DB) error {
		if err := tx.First(entity, uint(id)).Error; err != nil {
			return err
		}

		if err := entity.Transition(event); err != nil {
			return fmt.Errorf("%s: %w", r, err)
		}

		if err := tx.Model(entity).Select("state").Updates(entity).Error; err != nil {
			return err
		}

		if comment == "" {
			return nil
		}
		_, err := AddComment(tx, entity, comment)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entity, nil
}
