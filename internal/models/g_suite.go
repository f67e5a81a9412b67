package models

import (
	"strings"

	"github.com/ImShyMike/hcb/internal/statemachine"
	"gorm.io/gorm"
)

type GSuiteState string

const (
	GSuiteCreating    GSuiteState = "creating"
	GSuiteConfiguring GSuiteState = "configuring"
	GSuiteVerifying   GSuiteState = "verifying"
	GSuiteVerified    GSuiteState = "verified"
)

// GSuiteMachine allows resetting into creating and configuring from anywhere.
var GSuiteMachine = statemachine.New("g_suite", GSuiteCreating, []statemachine.Transition[GSuiteState]{
	{Event: "mark_creating", To: GSuiteCreating},
	{Event: "mark_configuring", To: GSuiteConfiguring},
	{Event: "mark_verifying", From: []GSuiteState{GSuiteConfiguring}, To: GSuiteVerifying},
	{Event: "mark_verified", From: []GSuiteState{GSuiteVerifying}, To: GSuiteVerified},
})

// GSuite is a workspace domain provisioned for an event.
type GSuite struct {
	DefaultModel
	EventID uint        `json:"eventId"`
	Event   Event       `json:"-"`
	Domain  string      `json:"domain" gorm:"uniqueIndex"`
	State   GSuiteState `json:"state" gorm:"default:creating"`
}

func (g *GSuite) BeforeSave(_ *gorm.DB) error {
	g.Domain = strings.ToLower(strings.TrimSpace(g.Domain))
	return nil
}

func (g *GSuite) Transition(event string) (err error) {
	g.State, err = GSuiteMachine.Fire(g.State, event)
	return
}

// NeedsHumanReview is true while an operator has to act on the domain.
func (g GSuite) NeedsHumanReview() bool {
	return g.State == GSuiteCreating || g.State == GSuiteVerifying
}

func (g GSuite) EntityRef() EntityRef {
	return ref("g_suite", g.ID)
}
