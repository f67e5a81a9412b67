package anomaly

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ImShyMike/hcb/internal/metrics"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrAlreadyResolved = errors.New("the anomaly has already been resolved")

// Reporter records anomalies of one run. Anomalies are persisted for
// operators, logged and counted.
type Reporter struct {
	runID string

	mu     sync.Mutex
	counts map[models.AnomalyKind]int
}

func NewReporter(runID string) *Reporter {
	return &Reporter{
		runID:  runID,
		counts: make(map[models.AnomalyKind]int),
	}
}

// Report records an anomaly for subject. An unresolved anomaly of the same
// kind for the same subject is not recorded again.
//
// Failing to persist an anomaly is logged, it never fails the caller.
func (r *Reporter) Report(db *gorm.DB, kind models.AnomalyKind, subject models.Commentable, format string, args ...any) {
	s := subject.EntityRef().String()
	detail := fmt.Sprintf(format, args...)

	log.Warn().Str("run", r.runID).Str("kind", string(kind)).Str("subject", s).Msg(detail)

	var count int64
	err := db.Model(&models.Anomaly{}).
		Where("kind = ? AND subject = ? AND resolved_at IS NULL", kind, s).
		Count(&count).Error
	if err != nil {
		log.Error().Err(err).Str("run", r.runID).Str("subject", s).Msg("anomaly could not be read")
		return
	}

	if count > 0 {
		return
	}

	err = db.Create(&models.Anomaly{
		RunID:   r.runID,
		Kind:    kind,
		Subject: s,
		Detail:  detail,
	}).Error
	if err != nil {
		log.Error().Err(err).Str("run", r.runID).Str("subject", s).Msg("anomaly could not be saved")
		return
	}

	metrics.Anomalies.WithLabelValues(string(kind)).Inc()

	r.mu.Lock()
	r.counts[kind]++
	r.mu.Unlock()
}

// Counts returns the number of new anomalies per kind.
func (r *Reporter) Counts() map[models.AnomalyKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[models.AnomalyKind]int, len(r.counts))
	for k, v := range r.counts {
		counts[k] = v
	}
	return counts
}

// Open returns all unresolved anomalies, oldest first.
func Open(db *gorm.DB) ([]models.Anomaly, error) {
	var anomalies []models.Anomaly
	err := db.Where("resolved_at IS NULL").Order("id ASC").Find(&anomalies).Error
	return anomalies, err
}

// Resolve marks an anomaly as handled by an operator.
func Resolve(db *gorm.DB, id uint) error {
	var a models.Anomaly
	if err := db.First(&a, id).Error; err != nil {
		return err
	}

	if a.ResolvedAt != nil {
		return ErrAlreadyResolved
	}

	now := time.Now().UTC()
	return db.Model(&a).Update("resolved_at", &now).Error
}
