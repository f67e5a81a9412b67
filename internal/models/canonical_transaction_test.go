package models_test

import (
	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ImShyMike/hcb/test"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteStandard) TestAssignHcbCodeNeverReassigns() {
	ct := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: 100, Date: test.Date(2024, 1, 1)})

	suite.Require().Nil(models.AssignHcbCode(suite.db, &ct, hcbcode.ForEntity(hcbcode.Invoice, 3)))
	suite.Assert().Equal("HCB-100-3", *ct.HcbCode)

	other := ct
	err := models.AssignHcbCode(suite.db, &other, hcbcode.ForEntity(hcbcode.Unknown, ct.ID))
	suite.Assert().ErrorIs(err, models.ErrHcbCodeAssigned)

	var reloaded models.CanonicalTransaction
	suite.Require().Nil(suite.db.First(&reloaded, ct.ID).Error)
	suite.Assert().Equal("HCB-100-3", *reloaded.HcbCode)
}

func (suite *TestSuiteStandard) TestCanonicalAmountIsImmutable() {
	ct := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: 100, Date: test.Date(2024, 1, 1)})

	err := suite.db.Model(&ct).Updates(map[string]any{"amount": 200}).Error
	suite.Assert().ErrorIs(err, models.ErrAmountImmutable)

	err = suite.db.Model(&ct).Updates(map[string]any{"memo": "CORRECTED"}).Error
	suite.Assert().Nil(err)
}

func (suite *TestSuiteStandard) TestSmartMemo() {
	friendly := "Coffee Shop"
	custom := "Team coffee"

	ct := models.CanonicalTransaction{Memo: "POS 4471 COFFEE SHOP"}
	suite.Assert().Equal("POS 4471 COFFEE SHOP", ct.SmartMemo())

	ct.FriendlyMemo = &friendly
	suite.Assert().Equal(friendly, ct.SmartMemo())

	ct.CustomMemo = &custom
	suite.Assert().Equal(custom, ct.SmartMemo())
}

func (suite *TestSuiteStandard) TestFeeAmountMustBeZeroUnlessRevenue() {
	event := test.CreateEvent(suite.T(), suite.db, "Fee Test", "0.07")
	ct := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: 5000, Date: test.Date(2024, 1, 1)})
	mapping := test.MapToEvent(suite.T(), suite.db, ct, event)

	err := suite.db.Create(&models.Fee{
		CanonicalEventMappingID: mapping.ID,
		Reason:                  models.FeeReasonRevenueWaived,
		Amount:                  decimal.NewFromInt(350),
	}).Error
	suite.Assert().ErrorIs(err, models.ErrFeeNotZero)

	fee := models.Fee{
		CanonicalEventMappingID: mapping.ID,
		Reason:                  models.FeeReasonRevenue,
		Amount:                  decimal.NewFromInt(350),
		EventSponsorshipFee:     event.SponsorshipFee,
	}
	suite.Require().Nil(suite.db.Create(&fee).Error)

	err = suite.db.Create(&models.Fee{CanonicalEventMappingID: mapping.ID, Reason: models.FeeReasonTBD}).Error
	suite.Assert().ErrorIs(err, models.ErrFeeExists)
}

func (suite *TestSuiteStandard) TestSponsorshipFeeRange() {
	for _, fee := range []string{"-0.01", "1", "1.5"} {
		err := suite.db.Create(&models.Event{Name: fee, Slug: fee, SponsorshipFee: decimal.RequireFromString(fee)}).Error
		suite.Assert().ErrorIs(err, models.ErrSponsorshipFeeOutOfRange, fee)
	}
}

func (suite *TestSuiteStandard) TestLoadHcbCode() {
	code := hcbcode.ForEntity(hcbcode.Disbursement, 9)
	s := code.String()

	test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: -500, Date: test.Date(2024, 1, 2), HcbCode: &s})
	test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: 500, Date: test.Date(2024, 1, 2), HcbCode: &s})
	test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: 70, Date: test.Date(2024, 1, 2)})

	h, err := models.LoadHcbCode(suite.db, code)
	suite.Require().Nil(err)
	suite.Assert().Len(h.CanonicalTransactions, 2)
	suite.Assert().Equal(int64(0), h.Amount())
	suite.Assert().Equal(hcbcode.Disbursement, h.Kind())
	suite.Assert().Equal("hcb_code:HCB-500-9", h.EntityRef().String())
}
