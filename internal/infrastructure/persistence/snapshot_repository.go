package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/infrastructure/persistence/models"
)

// GormSnapshotRepository implements billing.SnapshotRepository using GORM
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository creates a new GormSnapshotRepository
func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	return &GormSnapshotRepository{db: db}
}

// Load returns the current snapshot, or (nil, nil) when none has been
// persisted yet
func (r *GormSnapshotRepository) Load(ctx context.Context) (*billing.CampaignSnapshot, error) {
	var model models.CampaignSnapshotModel
	if err := dbFor(ctx, r.db).
		First(&model, "campaign_id = ?", billing.DefaultCampaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// Replace swaps the stored snapshot for the given one
func (r *GormSnapshotRepository) Replace(ctx context.Context, snapshot *billing.CampaignSnapshot) error {
	var model models.CampaignSnapshotModel
	if err := model.FromDomain(snapshot); err != nil {
		return err
	}
	model.UpdatedAt = time.Now()
	return dbFor(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

// Ensure interface compliance
var _ billing.SnapshotRepository = (*GormSnapshotRepository)(nil)
