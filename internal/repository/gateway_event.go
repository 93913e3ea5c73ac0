package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/repository/dao"
)

type GatewayEventDAO interface {
	Insert(ctx context.Context, event dao.GatewayEvent) (dao.GatewayEvent, error)
	GetByProviderEventID(ctx context.Context, providerEventID string) (dao.GatewayEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
	ListRecent(ctx context.Context, limit int) ([]dao.GatewayEvent, error)
}

type GatewayEventRepository struct {
	dao GatewayEventDAO
}

func NewGatewayEventRepository(dao GatewayEventDAO) *GatewayEventRepository {
	return &GatewayEventRepository{
		dao: dao,
	}
}

func (r *GatewayEventRepository) daoToDomain(e dao.GatewayEvent) domain.GatewayEvent {
	return domain.GatewayEvent{
		ID:              e.ID,
		ProviderEventID: e.ProviderEventID,
		EventName:       e.EventName,
		TransactionID:   e.TransactionID,
		Payload:         e.Payload,
		SignatureValid:  e.SignatureValid,
		ProcessedAt:     e.ProcessedAt,
		ProcessingError: e.ProcessingError,
		CreatedAt:       e.CreatedAt,
	}
}

func (r *GatewayEventRepository) Insert(ctx context.Context, event domain.GatewayEvent) (domain.GatewayEvent, error) {
	created, err := r.dao.Insert(ctx, dao.GatewayEvent{
		ProviderEventID: event.ProviderEventID,
		EventName:       event.EventName,
		TransactionID:   event.TransactionID,
		Payload:         event.Payload,
		SignatureValid:  event.SignatureValid,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			return domain.GatewayEvent{}, ErrDuplicateEvent
		}
		return domain.GatewayEvent{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *GatewayEventRepository) GetByProviderEventID(ctx context.Context, providerEventID string) (domain.GatewayEvent, error) {
	event, err := r.dao.GetByProviderEventID(ctx, providerEventID)
	if err != nil {
		return domain.GatewayEvent{}, fmt.Errorf("r.dao.GetByProviderEventID -> %w", err)
	}

	return r.daoToDomain(event), nil
}

func (r *GatewayEventRepository) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	if err := r.dao.MarkProcessed(ctx, id, processingError); err != nil {
		return fmt.Errorf("r.dao.MarkProcessed -> %w", err)
	}

	return nil
}

func (r *GatewayEventRepository) ListRecent(ctx context.Context, limit int) ([]domain.GatewayEvent, error) {
	events, err := r.dao.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ListRecent -> %w", err)
	}

	result := make([]domain.GatewayEvent, len(events))
	for i, e := range events {
		result[i] = r.daoToDomain(e)
	}

	return result, nil
}
