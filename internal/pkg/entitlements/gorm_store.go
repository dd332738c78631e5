package entitlements

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PropertyDesk/app/models"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, accountID string) (Record, error) {
	if s.db == nil {
		return Record{}, fmt.Errorf("%w: database not initialized", ErrStoreUnavailable)
	}
	var m models.Entitlement
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultRecord(accountID), nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: get %s: %w", ErrStoreUnavailable, accountID, err)
	}
	return recordFromModel(&m), nil
}

func (s *GormStore) Put(ctx context.Context, rec Record) error {
	if s.db == nil {
		return fmt.Errorf("%w: database not initialized", ErrStoreUnavailable)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id",
			"status",
			"trial_ends_at",
			"period_ends_at",
			"trial_used_at",
			"last_synced_at",
			"updated_at",
		}),
	}).Create(rec.toModel()).Error
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrStoreUnavailable, rec.AccountID, err)
	}
	return nil
}

func (s *GormStore) MarkExpired(ctx context.Context, seen Record) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("%w: database not initialized", ErrStoreUnavailable)
	}
	expected := seen.toModel()
	// <=> matches NULL against NULL
	tx := s.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("account_id = ? AND status = ? AND plan_id <=> ? AND trial_ends_at <=> ? AND period_ends_at <=> ?",
			expected.AccountID, expected.Status, expected.PlanID, expected.TrialEndsAt, expected.PeriodEndsAt).
		Update("status", string(StatusExpired))
	if tx.Error != nil {
		return false, fmt.Errorf("%w: mark expired %s: %w", ErrStoreUnavailable, seen.AccountID, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}
