package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/teachertools/classbank/classbank/database/models"
	"github.com/uptrace/bun"
)

type DisasterRepository interface {
	Create(ctx context.Context, disaster *models.Disaster) error
	GetByID(ctx context.Context, id int64) (*models.Disaster, error)
	List(ctx context.Context) ([]*models.Disaster, error)
	CreateEvent(ctx context.Context, event *models.DisasterEvent) error
	ListEvents(ctx context.Context, disasterID int64) ([]*models.DisasterEvent, error)
}

type disasterRepository struct {
	*BaseRepository
}

func NewDisasterRepository(db *bun.DB) DisasterRepository {
	return &disasterRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *disasterRepository) Create(ctx context.Context, disaster *models.Disaster) error {
	disaster.CreatedAt = time.Now()
	_, err := r.GetDB().NewInsert().Model(disaster).Exec(ctx)
	return r.HandleError("create", "disaster", err)
}

func (r *disasterRepository) GetByID(ctx context.Context, id int64) (*models.Disaster, error) {
	disaster := new(models.Disaster)
	err := r.GetDB().NewSelect().
		Model(disaster).
		Where("d.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "disaster", ID: id}
		}
		return nil, r.HandleErrorWithID("get", "disaster", id, err)
	}
	return disaster, nil
}

func (r *disasterRepository) List(ctx context.Context) ([]*models.Disaster, error) {
	var disasters []*models.Disaster
	err := r.GetDB().NewSelect().
		Model(&disasters).
		Order("name ASC").
		Scan(ctx)
	return disasters, r.HandleError("list", "disaster", err)
}

func (r *disasterRepository) CreateEvent(ctx context.Context, event *models.DisasterEvent) error {
	if event.TriggeredAt.IsZero() {
		event.TriggeredAt = time.Now()
	}
	_, err := r.GetDB().NewInsert().Model(event).Exec(ctx)
	return r.HandleError("create_event", "disaster_event", err)
}

func (r *disasterRepository) ListEvents(ctx context.Context, disasterID int64) ([]*models.DisasterEvent, error) {
	var events []*models.DisasterEvent
	err := r.GetDB().NewSelect().
		Model(&events).
		Where("disaster_id = ?", disasterID).
		Order("triggered_at DESC").
		Scan(ctx)
	return events, r.HandleError("list_events", "disaster_event", err)
}
