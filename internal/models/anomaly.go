package models

import (
	"time"
)

type AnomalyKind string

const (
	AnomalyDuplicateHashed      AnomalyKind = "duplicate_hashed_transaction"
	AnomalyMissingHashed        AnomalyKind = "missing_hashed_transaction"
	AnomalyMissingEntity        AnomalyKind = "missing_entity"
	AnomalyEventMappingConflict AnomalyKind = "event_mapping_conflict"
	AnomalyEventAmbiguous       AnomalyKind = "event_mapping_ambiguous"
	AnomalyEventUnmapped        AnomalyKind = "event_unmapped"
	AnomalyAmbiguousSettlement  AnomalyKind = "ambiguous_settlement"
	AnomalyDeclinedAfterSettle  AnomalyKind = "declined_after_settle"
	AnomalyInvalidRecord        AnomalyKind = "invalid_record"
	AnomalyImmutableChanged     AnomalyKind = "immutable_field_changed"
)

// Anomaly is a data problem that needs an operator. Anomalies are never
// resolved automatically.
type Anomaly struct {
	DefaultModel
	RunID      string      `json:"runId" gorm:"index"`
	Kind       AnomalyKind `json:"kind" gorm:"index:idx_anomaly_kind_subject"`
	Subject    string      `json:"subject" gorm:"index:idx_anomaly_kind_subject"`
	Detail     string      `json:"detail"`
	ResolvedAt *time.Time  `json:"resolvedAt"`
}
