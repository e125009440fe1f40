package repository

import (
	"context"
	"errors"

	"webcollect/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// GetRemoteID returns the WebCollect customer id stored for userID.
func (r *CustomerRepository) GetRemoteID(ctx context.Context, userID uint) (string, error) {
	var c models.Customer
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return c.RemoteID, nil
}

// Upsert stores remoteID for userID unless a mapping already exists, and
// returns whichever id is stored afterwards. The first write wins.
func (r *CustomerRepository) Upsert(ctx context.Context, userID uint, remoteID string) (string, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Customer{UserID: userID, RemoteID: remoteID}).Error
	if err != nil {
		return "", err
	}
	return r.GetRemoteID(ctx, userID)
}
