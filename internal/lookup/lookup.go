package lookup

import (
	"fmt"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
)

// Resolver caches entities and events for the stages of a run. Only
// successful lookups are cached.
//
// The database handle is passed per call so that lookups happen in the
// transaction of the caller.
type Resolver struct {
	entities *lru.Cache[string, models.Entity]
	events   *lru.Cache[uint, models.Event]
}

func New(size int) (*Resolver, error) {
	entities, err := lru.New[string, models.Entity](size)
	if err != nil {
		return nil, fmt.Errorf("entity cache: %w", err)
	}

	events, err := lru.New[uint, models.Event](size)
	if err != nil {
		return nil, fmt.Errorf("event cache: %w", err)
	}

	return &Resolver{entities: entities, events: events}, nil
}

// Entity returns the entity referenced by code.
func (r *Resolver) Entity(db *gorm.DB, code hcbcode.Code) (models.Entity, error) {
	key := code.String()
	if e, ok := r.entities.Get(key); ok {
		return e, nil
	}

	e, err := models.FindEntity(db, code)
	if err != nil {
		return nil, err
	}

	r.entities.Add(key, e)
	return e, nil
}

// Event returns the event with the given id.
func (r *Resolver) Event(db *gorm.DB, id uint) (models.Event, error) {
	if e, ok := r.events.Get(id); ok {
		return e, nil
	}

	var e models.Event
	if err := db.First(&e, id).Error; err != nil {
		return models.Event{}, err
	}

	r.events.Add(id, e)
	return e, nil
}

// Invalidate drops the cached entity for code.
func (r *Resolver) Invalidate(code hcbcode.Code) {
	r.entities.Remove(code.String())
}

// InvalidateEvent drops the cached event.
func (r *Resolver) InvalidateEvent(id uint) {
	r.events.Remove(id)
}

// Purge drops everything.
func (r *Resolver) Purge() {
	r.entities.Purge()
	r.events.Purge()
}
