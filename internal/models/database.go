package models

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	go_sqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// serializationRetries is how often a serializable transaction is retried
// after PostgreSQL aborted it because of a concurrent write.
const serializationRetries = 3

// constraintErrors maps unique indexes to the error returned when they are violated.
//
// SQLite reports the violated columns, PostgreSQL the index name.
var constraintErrors = []struct {
	sqlite string
	index  string
	err    error
}{
	{"raw_transactions.source, raw_transactions.native_id", "idx_raw_source_native", ErrRawTransactionExists},
	{"canonical_hashed_mappings.hashed_transaction_id", "idx_canonical_hashed_hashed", ErrHashedAlreadyCanonized},
	{"canonical_pending_transactions.raw_transaction_id", "idx_pending_raw", ErrPendingExists},
	{"canonical_pending_settled_mappings.canonical_pending_transaction_id", "idx_settled_pending", ErrPendingAlreadySettled},
	{"canonical_pending_settled_mappings.canonical_transaction_id", "idx_settled_canonical", ErrCanonicalAlreadyLinked},
	{"canonical_pending_declined_mappings.canonical_pending_transaction_id", "idx_declined_pending", ErrPendingAlreadyDeclined},
	{"canonical_event_mappings.canonical_transaction_id", "idx_event_mapping_canonical", ErrAlreadyMapped},
	{"canonical_pending_event_mappings.canonical_pending_transaction_id", "idx_pending_event_mapping_pending", ErrAlreadyMapped},
	{"fees.canonical_event_mapping_id", "idx_fee_mapping", ErrFeeExists},
	{"events.slug", "idx_events_slug", ErrEventSlugNotUnique},
}

// Connect opens the database and configures the connection pool.
//
// DSNs starting with "postgres://" or "host=" select PostgreSQL, everything
// else is treated as the path of an SQLite database.
func Connect(dsn string) error {
	config := &gorm.Config{
		Logger: &logger{
			Logger:        log.Logger,
			SlowThreshold: 500 * time.Millisecond,
		},
		NowFunc: func() time.Time {
			return time.Now().In(time.UTC)
		},
	}

	var db *gorm.DB
	var err error
	if isPostgres(dsn) {
		db, err = connectPostgres(dsn, config)
	} else {
		db, err = connectSqlite(dsn, config)
	}
	if err != nil {
		return err
	}

	err = registerCallbacks(db)
	if err != nil {
		return err
	}

	// Set the exported variable
	DB = db

	return nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.HasPrefix(dsn, "host=")
}

func connectPostgres(dsn string, config *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = migrate(db)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func connectSqlite(dsn string, config *gorm.Config) (*gorm.DB, error) {
	// Migration runs with foreign keys disabled since sqlite does not support
	// ALTER COLUMN and tables are copied, dropped and recreated
	db, err := gorm.Open(sqlite.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = migrate(db)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database object: %w", err)
	}
	sqlDB.Close()

	// Now, reconnect with foreign keys enabled
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=foreign_keys(1)", dsn, separator)
	db, err = gorm.Open(sqlite.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err = db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database object: %w", err)
	}

	// Get new connections after one hour
	sqlDB.SetConnMaxLifetime(time.Hour)

	// A single connection prevents SQLITE_BUSY errors and serializes all
	// writers, which gives serializable isolation for free
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func registerCallbacks(db *gorm.DB) error {
	err := db.Callback().Query().After("*").Register("hcb:after_query", queryCallback)
	if err != nil {
		return err
	}

	err = db.Callback().Query().After("*").Register("hcb:after_query_general", generalCallback)
	if err != nil {
		return err
	}

	err = db.Callback().Create().After("*").Register("hcb:after_create", createUpdateCallback)
	if err != nil {
		return err
	}

	err = db.Callback().Create().After("*").Register("hcb:after_create_general", generalCallback)
	if err != nil {
		return err
	}

	err = db.Callback().Update().After("*").Register("hcb:after_update", createUpdateCallback)
	if err != nil {
		return err
	}

	err = db.Callback().Update().After("*").Register("hcb:after_update_general", generalCallback)
	if err != nil {
		return err
	}

	return db.Callback().Delete().After("*").Register("hcb:after_delete_general", generalCallback)
}

// Atomic runs fc in a transaction. On PostgreSQL, the transaction is serializable
// and retried when it is aborted because of a concurrent transaction.
func Atomic(db *gorm.DB, fc func(tx *gorm.DB) error) error {
	if db.Dialector.Name() != "postgres" {
		return db.Transaction(fc)
	}

	var err error
	for range serializationRetries {
		err = db.Transaction(fc, &sql.TxOptions{Isolation: sql.LevelSerializable})

		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != "40001" {
			return err
		}

		log.Debug().Err(err).Msg("retrying serializable transaction")
	}

	return err
}

// queryCallback replaces the generic "no record" error with a more
// descriptive one
func queryCallback(db *gorm.DB) {
	if errors.Is(db.Error, gorm.ErrRecordNotFound) {
		// Use the table name as information about the type of resource
		// and replace "_" with "[space]"
		name := strings.ReplaceAll(db.Statement.Table, "_", " ")

		// Replace pluralized "ies" with "y"
		match := regexp.MustCompile("ies$")
		name = match.ReplaceAllString(name, "y")

		// Remove plural "s"
		name = strings.TrimRight(name, "s")

		db.Error = fmt.Errorf("%w %s matching your query", ErrResourceNotFound, name)
	}
}

// createUpdateCallback replaces unique constraint violations with the
// sentinel error of the violated index
func createUpdateCallback(db *gorm.DB) {
	if db.Error == nil {
		return
	}

	var pgErr *pgconn.PgError
	if errors.As(db.Error, &pgErr) && pgErr.Code == "23505" {
		for _, c := range constraintErrors {
			if pgErr.ConstraintName == c.index {
				db.Error = c.err
				return
			}
		}
		return
	}

	for _, c := range constraintErrors {
		if strings.Contains(db.Error.Error(), "UNIQUE constraint failed: "+c.sqlite) {
			db.Error = c.err
			return
		}
	}
}

// generalCallback handles unspecified errors.
//
// The error is logged with all details and replaced with a general error.
func generalCallback(db *gorm.DB) {
	if db.Error == nil {
		return
	}

	// "sql: database is closed" is hard-coded in the sql module, see
	// https://cs.opensource.google/go/go/+/master:src/database/sql/sql.go;l=1298;drc=0d018b49e33b1383dc0ae5cc968e800dffeeaf7d
	if db.Error.Error() == "sql: database is closed" || reflect.TypeOf(db.Error) == reflect.TypeOf(&go_sqlite.Error{}) {
		log.Error().Msgf("%T: %v", db.Error, db.Error.Error())
		db.Error = ErrGeneral

		return
	}
}

// isConstraintError reports if err is one of the translated constraint violations.
func isConstraintError(err error) bool {
	for _, c := range constraintErrors {
		if errors.Is(err, c.err) {
			return true
		}
	}
	return false
}

// migrate migrates all models to the schema defined in the code.
func migrate(db *gorm.DB) (err error) {
	err = db.AutoMigrate(
		Event{},
		Sponsor{},
		BankAccount{},
		Invoice{},
		Donation{},
		AchTransfer{},
		Check{},
		Disbursement{},
		BankFee{},
		StripeCardholder{},
		StripeCard{},
		GSuite{},
		RawTransaction{},
		HashedTransaction{},
		CanonicalTransaction{},
		CanonicalHashedMapping{},
		CanonicalPendingTransaction{},
		CanonicalPendingDeclinedMapping{},
		CanonicalPendingSettledMapping{},
		CanonicalEventMapping{},
		CanonicalPendingEventMapping{},
		Fee{},
		EventMemoRule{},
		Anomaly{},
		SyncCheckpoint{},
		Comment{},
	)
	if err != nil {
		return fmt.Errorf("error during DB migration: %w", err)
	}

	return nil
}
