package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/toolforge/backend/internal/domain/metering"
	"github.com/toolforge/backend/internal/domain/shared"
)

// PlanRecordModel is the GORM model for plan assignments.
// UUID columns are stored as strings so the schema works on both the
// production database and the sqlite test database.
type PlanRecordModel struct {
	ID        string     `gorm:"type:varchar(36);primaryKey"`
	AccountID string     `gorm:"type:varchar(36);uniqueIndex;not null"`
	Kind      string     `gorm:"type:varchar(20);not null"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (PlanRecordModel) TableName() string {
	return "plan_records"
}

// ToEntity converts the model to a domain entity
func (m *PlanRecordModel) ToEntity() *metering.PlanRecord {
	id, _ := uuid.Parse(m.ID)
	accountID, _ := uuid.Parse(m.AccountID)

	return &metering.PlanRecord{
		BaseEntity: shared.BaseEntity{
			ID:        id,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		AccountID: accountID,
		Kind:      metering.PlanKind(m.Kind),
		ExpiresAt: m.ExpiresAt,
	}
}

// PlanRecordModelFromEntity creates a model from a domain entity
func PlanRecordModelFromEntity(e *metering.PlanRecord) *PlanRecordModel {
	return &PlanRecordModel{
		ID:        e.ID.String(),
		AccountID: e.AccountID.String(),
		Kind:      string(e.Kind),
		ExpiresAt: e.ExpiresAt,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// PlanRecordRepository implements the metering.PlanRecordRepository interface
type PlanRecordRepository struct {
	db *gorm.DB
}

// NewPlanRecordRepository creates a new plan record repository
func NewPlanRecordRepository(db *gorm.DB) *PlanRecordRepository {
	return &PlanRecordRepository{db: db}
}

// FindByAccountID retrieves the plan record for an account
func (r *PlanRecordRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*metering.PlanRecord, error) {
	var model PlanRecordModel
	if err := r.db.WithContext(ctx).First(&model, "account_id = ?", accountID.String()).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Save upserts a plan record keyed by account id
func (r *PlanRecordRepository) Save(ctx context.Context, record *metering.PlanRecord) error {
	model := PlanRecordModelFromEntity(record)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "expires_at", "updated_at"}),
	}).Create(model).Error
}

// List returns plan records ordered by most recent update, with the total count
func (r *PlanRecordRepository) List(ctx context.Context, limit, offset int) ([]*metering.PlanRecord, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&PlanRecordModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []PlanRecordModel
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]*metering.PlanRecord, len(models))
	for i, model := range models {
		records[i] = model.ToEntity()
	}
	return records, total, nil
}

// FindAll returns every plan record
func (r *PlanRecordRepository) FindAll(ctx context.Context) ([]*metering.PlanRecord, error) {
	var models []PlanRecordModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]*metering.PlanRecord, len(models))
	for i, model := range models {
		records[i] = model.ToEntity()
	}
	return records, nil
}

// Ensure PlanRecordRepository implements the interface
var _ metering.PlanRecordRepository = (*PlanRecordRepository)(nil)
