package sync

import (
	"errors"
	"fmt"

	"github.com/xelth-com/ordsyncgo/internal/database"
	"github.com/xelth-com/ordsyncgo/internal/models"
	"gorm.io/gorm"
)

// GormOrderStore is the production LocalOrderStore over the storefront tables
type GormOrderStore struct {
	db *database.DB
}

// NewGormOrderStore creates the store
func NewGormOrderStore(db *database.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

// GetOrder loads a local order by primary key
func (s *GormOrderStore) GetOrder(id uint) (*models.StoreOrder, error) {
	var order models.StoreOrder
	err := s.db.First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return &order, nil
}

// GetOrderByRemoteID loads the local order linked to a marketplace order
func (s *GormOrderStore) GetOrderByRemoteID(remoteID int64) (*models.StoreOrder, error) {
	var order models.StoreOrder
	err := s.db.Where("remote_order_id = ?", remoteID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no order linked to marketplace order %d", ErrNotFound, remoteID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order by remote id %d: %w", remoteID, err)
	}
	return &order, nil
}

// Persist saves the full order row
func (s *GormOrderStore) Persist(order *models.StoreOrder) error {
	if err := s.db.Save(order).Error; err != nil {
		return fmt.Errorf("persist order %d: %w", order.ID, err)
	}
	return nil
}

// AddAuditNote appends a sync-engine note to the order
func (s *GormOrderStore) AddAuditNote(orderID uint, note string) error {
	row := models.OrderNote{OrderID: orderID, Note: note, Author: "sync-engine"}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("add audit note to order %d: %w", orderID, err)
	}
	return nil
}

// GormResolutionLog is the production ResolutionRecorder
type GormResolutionLog struct {
	db *database.DB
}

// NewGormResolutionLog creates the recorder
func NewGormResolutionLog(db *database.DB) *GormResolutionLog {
	return &GormResolutionLog{db: db}
}

// RecordResolution appends one decision to the per-order audit trail
func (r *GormResolutionLog) RecordResolution(key OrderKey, field, strategy, winner, reason string, value interface{}) error {
	row := models.ResolutionLog{
		LocalOrderID:  key.LocalOrderID,
		RemoteOrderID: key.RemoteOrderID,
		Field:         field,
		Strategy:      strategy,
		Winner:        winner,
		ChosenValue:   models.JSONB{"value": value},
		Reason:        reason,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return fmt.Errorf("record resolution %s/%s: %w", key, field, err)
	}
	return nil
}

// History returns the resolution trail for one order, newest first
func (r *GormResolutionLog) History(key OrderKey) ([]models.ResolutionLog, error) {
	var rows []models.ResolutionLog
	err := r.db.Where("local_order_id = ? AND remote_order_id = ?", key.LocalOrderID, key.RemoteOrderID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("resolution history %s: %w", key, err)
	}
	return rows, nil
}
