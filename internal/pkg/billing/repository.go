package billing

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PropertyDesk/app/models"
)

// CallbackRepository persists inbound checkout callbacks.
type CallbackRepository interface {
	CreateCallbackIfNotExists(ctx context.Context, cb *models.CheckoutCallback) (bool, *models.CheckoutCallback, error)
	MarkCallbackProcessed(ctx context.Context, id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a callback repository backed by GORM.
func NewRepository(db *gorm.DB) CallbackRepository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateCallbackIfNotExists(ctx context.Context, cb *models.CheckoutCallback) (bool, *models.CheckoutCallback, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(cb)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.CheckoutCallback
	if err := db.Where("provider = ? AND event_id = ?", cb.Provider, cb.EventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkCallbackProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.CheckoutCallback{}).Where("id = ?", id).Updates(updates).Error
}

type memoryRepository struct {
	mu     sync.Mutex
	nextID uint
	byKey  map[string]*models.CheckoutCallback
	byID   map[uint]*models.CheckoutCallback
}

// NewMemoryRepository keeps callbacks in process memory, for local runs
// without MySQL and for tests.
func NewMemoryRepository() CallbackRepository {
	return &memoryRepository{
		byKey: make(map[string]*models.CheckoutCallback),
		byID:  make(map[uint]*models.CheckoutCallback),
	}
}

func (r *memoryRepository) CreateCallbackIfNotExists(ctx context.Context, cb *models.CheckoutCallback) (bool, *models.CheckoutCallback, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cb.Provider + "\x00" + cb.EventID
	if existing, ok := r.byKey[key]; ok {
		stored := *existing
		return false, &stored, nil
	}
	r.nextID++
	stored := *cb
	stored.ID = r.nextID
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.byKey[key] = &stored
	r.byID[stored.ID] = &stored

	out := stored
	return true, &out, nil
}

func (r *memoryRepository) MarkCallbackProcessed(ctx context.Context, id uint, processingError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now().UTC()
	cb.ProcessedAt = &now
	cb.ProcessingError = processingError
	cb.UpdatedAt = now
	return nil
}
