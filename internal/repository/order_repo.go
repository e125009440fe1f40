package repository

import (
	"context"
	"errors"
	"time"

	"webcollect/internal/domain"
	"webcollect/internal/models"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetByID loads an order with its line items.
func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkPaid moves a pending order to paid, attaches note and closes the order's
// open checkout sessions. The status guard is part of the UPDATE, so concurrent
// calls for one order apply at most once; the boolean reports whether this call
// applied it.
func (r *OrderRepository) MarkPaid(ctx context.Context, id uint, note string) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, domain.OrderStatusPending).
			Updates(map[string]any{"status": domain.OrderStatusPaid, "paid_at": &now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		if err := tx.Create(&models.OrderNote{OrderID: id, Note: note}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Payment{}).
			Where("order_id = ? AND status = ?", id, domain.PaymentStatusOpen).
			Updates(map[string]any{"status": domain.PaymentStatusCompleted, "completed_at": &now}).Error
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Notes returns the notes attached to an order, oldest first.
func (r *OrderRepository) Notes(ctx context.Context, orderID uint) ([]models.OrderNote, error) {
	var list []models.OrderNote
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&list).Error
	return list, err
}
