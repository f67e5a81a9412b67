package models_test

import (
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ImShyMike/hcb/test"
	"gorm.io/gorm"
)

func (suite *TestSuiteStandard) createPending(nativeID string, amount int64) models.CanonicalPendingTransaction {
	raw := test.CreateRaw(suite.T(), suite.db, models.RawTransaction{
		Source:   models.SourceAchTransfer,
		NativeID: nativeID,
		Amount:   amount,
		Date:     test.Date(2024, 5, 2),
		Pending:  true,
	})
	return test.CreatePending(suite.T(), suite.db, raw, "HCB-300-"+nativeID)
}

func (suite *TestSuiteStandard) TestPendingDefaultsToPendingState() {
	p := suite.createPending("1", -1000)
	suite.Assert().Equal(models.PendingStatePending, p.State)
	suite.Assert().False(p.IsSettled())
	suite.Assert().False(p.IsDeclined())
}

func (suite *TestSuiteStandard) TestSettleRecordsAmountSettled() {
	p := suite.createPending("2", -1000)
	ct := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: -800, Date: test.Date(2024, 5, 4)})

	var mapping models.CanonicalPendingSettledMapping
	err := models.Atomic(suite.db, func(tx *gorm.DB) (err error) {
		mapping, err = p.Settle(tx, ct)
		return
	})
	suite.Require().Nil(err)

	suite.Assert().Equal(int64(-800), mapping.AmountSettled)
	suite.Assert().True(p.IsSettled())

	var reloaded models.CanonicalPendingTransaction
	suite.Require().Nil(suite.db.First(&reloaded, p.ID).Error)
	suite.Assert().Equal(models.PendingStateSettled, reloaded.State)
	suite.Assert().Equal(int64(-1000), reloaded.Amount, "the pending amount is kept")
}

func (suite *TestSuiteStandard) TestPendingTerminalStatesAreExclusive() {
	settled := suite.createPending("3", -1000)
	declined := suite.createPending("4", -1000)
	ct := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: -1000, Date: test.Date(2024, 5, 4)})

	suite.Require().Nil(models.Atomic(suite.db, func(tx *gorm.DB) error {
		_, err := settled.Settle(tx, ct)
		return err
	}))
	suite.Require().Nil(models.Atomic(suite.db, func(tx *gorm.DB) error {
		_, err := declined.Decline(tx)
		return err
	}))

	err := models.Atomic(suite.db, func(tx *gorm.DB) error {
		_, err := settled.Decline(tx)
		return err
	})
	suite.Assert().ErrorIs(err, models.ErrPendingAlreadySettled)

	err = models.Atomic(suite.db, func(tx *gorm.DB) error {
		_, err := declined.Settle(tx, ct)
		return err
	})
	suite.Assert().ErrorIs(err, models.ErrPendingAlreadyDeclined)
}

func (suite *TestSuiteStandard) TestStaleStateCannotSettleTwice() {
	p := suite.createPending("5", -1000)
	stale := p
	first := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: -1000, Date: test.Date(2024, 5, 4)})
	second := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: -1000, Date: test.Date(2024, 5, 5)})

	suite.Require().Nil(models.Atomic(suite.db, func(tx *gorm.DB) error {
		_, err := p.Settle(tx, first)
		return err
	}))

	// A copy read before the first settlement must not settle again
	err := models.Atomic(suite.db, func(tx *gorm.DB) error {
		_, err := stale.Settle(tx, second)
		return err
	})
	suite.Assert().ErrorIs(err, models.ErrPendingAlreadySettled)

	var count int64
	suite.db.Model(&models.CanonicalPendingSettledMapping{}).Count(&count)
	suite.Assert().Equal(int64(1), count)
}

func (suite *TestSuiteStandard) TestCanonicalSettlesOnlyOnePending() {
	a := suite.createPending("6", -1000)
	b := suite.createPending("7", -1000)
	ct := test.CreateCanonical(suite.T(), suite.db, models.CanonicalTransaction{Amount: -1000, Date: test.Date(2024, 5, 4)})

	suite.Require().Nil(models.Atomic(suite.db, func(tx *gorm.DB) error {
		_, err := a.Settle(tx, ct)
		return err
	}))

	err := models.Atomic(suite.db, func(tx *gorm.DB) error {
		_, err := b.Settle(tx, ct)
		return err
	})
	suite.Assert().ErrorIs(err, models.ErrCanonicalAlreadyLinked)

	var reloaded models.CanonicalPendingTransaction
	suite.Require().Nil(suite.db.First(&reloaded, b.ID).Error)
	suite.Assert().Equal(models.PendingStatePending, reloaded.State, "the failed settlement has been rolled back")
}
