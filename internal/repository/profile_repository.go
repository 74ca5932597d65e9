package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/cattle-id/internal/classifier"
	"github.com/example/cattle-id/internal/husbandry"
	"github.com/example/cattle-id/internal/retry"
)

// ProfileRecord is one row of enrolled-animal care data.
type ProfileRecord struct {
	ID              uint      `gorm:"primaryKey"`
	Label           string    `gorm:"column:label;uniqueIndex;size:64;not null"`
	NextVaccination time.Time `gorm:"column:next_vaccination;type:date;not null"`
	WaterAmount     float64   `gorm:"column:water_amount"`
	WaterUnit       string    `gorm:"column:water_unit;size:32"`
	FoodAmount      float64   `gorm:"column:food_amount"`
	FoodUnit        string    `gorm:"column:food_unit;size:32"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (ProfileRecord) TableName() string {
	return "husbandry_profiles"
}

// Profile converts the row into the domain type.
func (r ProfileRecord) Profile() husbandry.Profile {
	return husbandry.Profile{
		NextVaccination: husbandry.DateOf(r.NextVaccination),
		WaterNeed:       husbandry.Quantity{Amount: r.WaterAmount, Unit: r.WaterUnit},
		FoodNeed:        husbandry.Quantity{Amount: r.FoodAmount, Unit: r.FoodUnit},
	}
}

// ProfileRepository reads husbandry reference data from Postgres. Writes
// belong to whoever manages the herd records.
type ProfileRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewProfileRepository creates a new repository instance.
func NewProfileRepository(db *gorm.DB, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger.Named("profile_repository"),
		policy: retry.DefaultPolicy(),
	}
}

// AutoMigrate ensures the schema is available.
func (r *ProfileRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&ProfileRecord{})
	})
}

// ListProfiles returns every row ordered by label.
func (r *ProfileRepository) ListProfiles(ctx context.Context) ([]ProfileRecord, error) {
	var records []ProfileRecord
	err := r.executeWithRetry(ctx, "repository.list_profiles", "", func() error {
		records = records[:0]
		return r.db.WithContext(ctx).Order("label").Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LoadTable reads all profiles once and builds the immutable lookup table.
func (r *ProfileRepository) LoadTable(ctx context.Context) (*husbandry.Table, error) {
	records, err := r.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return TableFromRecords(records)
}

// TableFromRecords builds a table, rejecting duplicate labels.
func TableFromRecords(records []ProfileRecord) (*husbandry.Table, error) {
	profiles := make(map[classifier.Label]husbandry.Profile, len(records))
	for _, rec := range records {
		label := classifier.Label(rec.Label)
		if _, dup := profiles[label]; dup {
			return nil, fmt.Errorf("duplicate profile for %s", rec.Label)
		}
		profiles[label] = rec.Profile()
	}
	return husbandry.NewTable(profiles)
}

func (r *ProfileRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return retry.Do(ctx, r.policy, r.logger, operation, requestID, fn)
}
