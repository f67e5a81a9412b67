package models_test

import (
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ImShyMike/hcb/test"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteStandard) TestAvailableBalance() {
	event := test.CreateEvent(suite.T(), suite.db, "Balance", "0.07")
	other := test.CreateEvent(suite.T(), suite.db, "Other", "0.07")

	income := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: 10000, Date: test.Date(2024, 2, 1)})
	expense := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: -2500, Date: test.Date(2024, 2, 2)})
	foreign := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: 999, Date: test.Date(2024, 2, 2)})

	incomeMapping := test.MapToEvent(suite.T(), suite.db, income, event)
	test.MapToEvent(suite.T(), suite.db, expense, event)
	test.MapToEvent(suite.T(), suite.db, foreign, other)

	suite.Require().Nil(suite.db.Create(&models.Fee{
		CanonicalEventMappingID: incomeMapping.ID,
		Reason:                  models.FeeReasonRevenue,
		Amount:                  decimal.RequireFromString("700.5"),
		EventSponsorshipFee:     event.SponsorshipFee,
	}).Error)

	// An open authorization reduces the available balance, incoming pending money does not
	for i, amount := range []int64{-1000, 3000} {
		raw := test.CreateRaw(suite.T(), suite.db, models.RawTransaction{Source: models.SourceStripe, NativeID: string(rune('a' + i)), Amount: amount, Date: test.Date(2024, 2, 3), Pending: true})
		p := test.CreatePending(suite.T(), suite.db, raw, "")
		suite.Require().Nil(suite.db.Create(&models.CanonicalPendingEventMapping{CanonicalPendingTransactionID: p.ID, EventID: event.ID}).Error)
	}

	balance, err := models.AvailableBalance(suite.db, event.ID)
	suite.Require().Nil(err)

	// 10000 - 2500 - 1000 - ceil(700.5)
	suite.Assert().Equal(int64(5799), balance)
}

func (suite *TestSuiteStandard) TestAvailableBalanceEmptyEvent() {
	event := test.CreateEvent(suite.T(), suite.db, "Empty", "0.07")

	balance, err := models.AvailableBalance(suite.db, event.ID)
	suite.Require().Nil(err)
	suite.Assert().Equal(int64(0), balance)
}
