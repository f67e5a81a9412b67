package eventmap

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ImShyMike/hcb/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

var ErrUnknownEvent = errors.New("the rule references an unknown event")

// Rule is an event memo rule as written in a rules file:
//
//	- priority: 10
//	  match: "*ROBOTICS*"
//	  event: robotics
type Rule struct {
	Priority uint   `yaml:"priority"`
	Match    string `yaml:"match" validate:"required"`
	Event    string `yaml:"event" validate:"required"`
}

// LoadRules replaces all event memo rules with the rules read from r.
func LoadRules(db *gorm.DB, r io.Reader) (int, error) {
	var rules []Rule
	if err := yaml.NewDecoder(r).Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("rules could not be decoded: %w", err)
	}

	v := validator.New()
	for i, rule := range rules {
		if err := v.Struct(rule); err != nil {
			return 0, fmt.Errorf("rule %d is invalid: %w", i+1, err)
		}
	}

	err := models.Atomic(db, func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.EventMemoRule{}).Error; err != nil {
			return err
		}

		for i, rule := range rules {
			var event models.Event
			if err := tx.Where("slug = ?", rule.Event).Limit(1).Find(&event).Error; err != nil {
				return err
			}
			if event.ID == 0 {
				return fmt.Errorf("rule %d: %w %q", i+1, ErrUnknownEvent, rule.Event)
			}

			if err := tx.Create(&models.EventMemoRule{Priority: rule.Priority, Match: rule.Match, EventID: event.ID}).Error; err != nil {
				return fmt.Errorf("rule %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int("rules", len(rules)).Msg("event memo rules loaded")
	return len(rules), nil
}

// LoadRulesFile loads the rules from the file at path.
func LoadRulesFile(db *gorm.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return LoadRules(db, f)
}
