package dao

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type GatewayEventDAO struct {
	db *gorm.DB
}

func NewGatewayEventDAO(db *gorm.DB) *GatewayEventDAO {
	return &GatewayEventDAO{
		db: db,
	}
}

// Insert records a received webhook event. A second delivery of the same
// provider event id returns ErrDuplicateEvent via the unique index.
func (d *GatewayEventDAO) Insert(ctx context.Context, event GatewayEvent) (GatewayEvent, error) {
	if err := d.db.WithContext(ctx).Create(&event).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return GatewayEvent{}, ErrDuplicateEvent
		}
		return GatewayEvent{}, err
	}

	return event, nil
}

func (d *GatewayEventDAO) GetByProviderEventID(ctx context.Context, providerEventID string) (GatewayEvent, error) {
	var event GatewayEvent
	err := d.db.WithContext(ctx).Where("provider_event_id = ?", providerEventID).First(&event).Error
	if err != nil {
		return GatewayEvent{}, err
	}

	return event, nil
}

func (d *GatewayEventDAO) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()

	return d.db.WithContext(ctx).Model(&GatewayEvent{}).Where("id = ?", id).
		Updates(map[string]any{
			"processed_at":     now,
			"processing_error": processingError,
		}).Error
}

func (d *GatewayEventDAO) ListRecent(ctx context.Context, limit int) ([]GatewayEvent, error) {
	var events []GatewayEvent
	err := d.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}
