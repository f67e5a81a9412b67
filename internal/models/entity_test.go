package models_test

import (
	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ImShyMike/hcb/internal/statemachine"
	"github.com/ImShyMike/hcb/test"
)

func (suite *TestSuiteStandard) TestFindEntity() {
	event := test.CreateEvent(suite.T(), suite.db, "Robotics", "0.07")
	source := test.CreateEvent(suite.T(), suite.db, "Hack Club HQ", "0")

	sponsor := models.Sponsor{Name: "Acme", EventID: event.ID}
	suite.Require().Nil(suite.db.Create(&sponsor).Error)

	invoice := models.Invoice{SponsorID: sponsor.ID, AmountDue: 20000, State: models.InvoiceOpen}
	suite.Require().Nil(suite.db.Create(&invoice).Error)

	disbursement := models.Disbursement{EventID: event.ID, SourceEventID: source.ID, Amount: 5000, Name: "Grant", State: models.DisbursementPending}
	suite.Require().Nil(suite.db.Create(&disbursement).Error)

	e, err := models.FindEntity(suite.db, invoice.Code())
	suite.Require().Nil(err)
	suite.Assert().Equal(event.ID, e.EventFor(20000))
	suite.Assert().Equal("Invoice to Acme", e.Describe(20000))

	e, err = models.FindEntity(suite.db, disbursement.Code())
	suite.Require().Nil(err)
	suite.Assert().Equal(event.ID, e.EventFor(5000))
	suite.Assert().Equal(source.ID, e.EventFor(-5000))
	suite.Assert().Equal("Transfer from Hack Club HQ", e.Describe(5000))
	suite.Assert().Equal("Transfer to Robotics", e.Describe(-5000))

	legs := e.Legs()
	suite.Require().Len(legs, 2)
	suite.Assert().Equal(int64(-5000), legs[0].Amount)
	suite.Assert().Equal(int64(5000), legs[1].Amount)
	suite.Assert().NotEqual(legs[0].NativeID, legs[1].NativeID)

	_, err = models.FindEntity(suite.db, hcbcode.ForEntity(hcbcode.Check, 4711))
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)

	_, err = models.FindEntity(suite.db, hcbcode.New(hcbcode.CardCharge, "iauth_1"))
	suite.Assert().ErrorIs(err, models.ErrNoLocalEntity)
}

func (suite *TestSuiteStandard) TestEntityTransitions() {
	ach := models.AchTransfer{State: models.AchTransferPending}
	suite.Require().Nil(ach.Transition("mark_in_transit"))
	suite.Require().Nil(ach.Transition("mark_deposited"))
	suite.Assert().ErrorIs(ach.Transition("mark_rejected"), statemachine.ErrInvalidTransition)
	suite.Assert().Equal(models.AchTransferDeposited, ach.State)

	donation := models.Donation{State: models.DonationPending}
	suite.Require().Nil(donation.Transition("mark_in_transit"))
	suite.Require().Nil(donation.Transition("mark_deposited"))
	suite.Require().Nil(donation.Transition("mark_refunded"))
	suite.Assert().True(donation.Refunded())

	g := models.GSuite{State: models.GSuiteVerified}
	suite.Assert().ErrorIs(g.Transition("mark_verified"), statemachine.ErrInvalidTransition)
	suite.Require().Nil(g.Transition("mark_configuring"))
	suite.Require().Nil(g.Transition("mark_verifying"))
	suite.Assert().True(g.NeedsHumanReview())
}

func (suite *TestSuiteStandard) TestTransitionEntity() {
	event := test.CreateEvent(suite.T(), suite.db, "Robotics", "0.07")
	ach := models.AchTransfer{EventID: event.ID, Amount: 1000, RecipientName: "Parts Inc"}
	suite.Require().Nil(suite.db.Create(&ach).Error)

	ref, err := models.ParseEntityRef(ach.EntityRef().String())
	suite.Require().Nil(err)

	_, err = models.TransitionEntity(suite.db, ref, "mark_rejected", "Returned by the bank")
	suite.Require().Nil(err)

	var stored models.AchTransfer
	suite.Require().Nil(suite.db.First(&stored, ach.ID).Error)
	suite.Assert().Equal(models.AchTransferRejected, stored.State)
	suite.Assert().True(stored.Legs()[0].Declined)

	comments, err := models.Comments(suite.db, stored)
	suite.Require().Nil(err)
	suite.Require().Len(comments, 1)
	suite.Assert().Equal("Returned by the bank", comments[0].Body)

	// Rejected is terminal, nothing is stored
	_, err = models.TransitionEntity(suite.db, ref, "mark_in_transit", "Resent")
	suite.Assert().ErrorIs(err, statemachine.ErrInvalidTransition)
	comments, err = models.Comments(suite.db, stored)
	suite.Require().Nil(err)
	suite.Assert().Len(comments, 1)

	_, err = models.TransitionEntity(suite.db, models.EntityRef{Type: "ach_transfer", ID: "4711"}, "mark_in_transit", "")
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)

	_, err = models.TransitionEntity(suite.db, models.EntityRef{Type: "event", ID: "1"}, "mark_in_transit", "")
	suite.Assert().ErrorIs(err, models.ErrNoLifecycle)
}

func (suite *TestSuiteStandard) TestParseEntityRef() {
	ref, err := models.ParseEntityRef("g_suite:3")
	suite.Require().Nil(err)
	suite.Assert().Equal(models.EntityRef{Type: "g_suite", ID: "3"}, ref)

	for _, s := range []string{"", "g_suite", ":3", "g_suite:three", "g_suite:-1"} {
		_, err := models.ParseEntityRef(s)
		suite.Assert().ErrorIs(err, models.ErrInvalidEntityRef, s)
	}
}

func (suite *TestSuiteStandard) TestDeclinedLegs() {
	check := models.Check{Amount: 1200, PayeeName: "Printer Co", State: models.CheckVoided}
	legs := check.Legs()
	suite.Require().Len(legs, 1)
	suite.Assert().True(legs[0].Declined)
	suite.Assert().Equal(int64(-1200), legs[0].Amount)

	invoice := models.Invoice{AmountDue: 100, State: models.InvoicePaid, FeeWaived: true}
	suite.Assert().False(invoice.Legs()[0].Declined)
	suite.Assert().True(invoice.Legs()[0].FeeWaived)
}

func (suite *TestSuiteStandard) TestComments() {
	code := models.HcbCode{Code: hcbcode.ForEntity(hcbcode.AchTransfer, 55)}

	_, err := models.AddComment(suite.db, code, "  ")
	suite.Assert().ErrorIs(err, models.ErrCommentEmpty)

	_, err = models.AddComment(suite.db, code, "Returned by the bank, resent on Monday")
	suite.Require().Nil(err)

	comments, err := models.Comments(suite.db, code)
	suite.Require().Nil(err)
	suite.Require().Len(comments, 1)
	suite.Assert().Equal("hcb_code", comments[0].CommentableType)
	suite.Assert().Equal("HCB-300-55", comments[0].CommentableID)
}

func (suite *TestSuiteStandard) TestCheckpoints() {
	_, ok, err := models.LoadCheckpoint(suite.db, "sweep")
	suite.Require().Nil(err)
	suite.Assert().False(ok)

	suite.Require().Nil(models.SaveCheckpoint(suite.db, "sweep", test.Date(2024, 1, 15)))
	suite.Require().Nil(models.SaveCheckpoint(suite.db, "sweep", test.Date(2024, 1, 30)))

	date, ok, err := models.LoadCheckpoint(suite.db, "sweep")
	suite.Require().Nil(err)
	suite.Assert().True(ok)
	suite.Assert().True(date.Equal(test.Date(2024, 1, 30)), date)

	suite.Require().Nil(models.DeleteCheckpoint(suite.db, "sweep"))
	_, ok, _ = models.LoadCheckpoint(suite.db, "sweep")
	suite.Assert().False(ok)
}
