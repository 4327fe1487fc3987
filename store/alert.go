package store

import (
	"context"
	"time"
)

type AlertType string

const (
	AlertTypeWarning AlertType = "warning"
	AlertTypeBreach  AlertType = "breach"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

type ResolvedAction string

const (
	ResolvedActionMarkResolved        ResolvedAction = "mark_resolved"
	ResolvedActionAccountantResponded ResolvedAction = "accountant_responded"
	ResolvedActionAutoExpired         ResolvedAction = "auto_expired"
)

// SlaAlert is one escalation-level notification for a request.
type SlaAlert struct {
	ID                int64
	UID               string
	RequestID         int64
	AlertType         AlertType
	EscalationLevel   int
	MinutesElapsed    float64
	ManagerTelegramID int64
	AlertSentAt       *time.Time
	DeliveryStatus    DeliveryStatus
	TelegramMessageID *int64
	ResolvedAction    *ResolvedAction
	AcknowledgedBy    *int64
	AcknowledgedAt    *time.Time
	ResolutionNotes   *string
	CreatedTs         int64
	UpdatedTs         int64
}

type CreateSlaAlert struct {
	UID               string
	RequestID         int64
	AlertType         AlertType
	EscalationLevel   int
	MinutesElapsed    float64
	ManagerTelegramID int64
}

type FindSlaAlert struct {
	ID              *int64
	UID             *string
	RequestID       *int64
	EscalationLevel *int
	UnresolvedOnly  bool
}

type UpdateSlaAlert struct {
	ID                int64
	AlertSentAt       *time.Time
	DeliveryStatus    *DeliveryStatus
	TelegramMessageID *int64
	ResolvedAction    *ResolvedAction
	AcknowledgedBy    *int64
	AcknowledgedAt    *time.Time
	ResolutionNotes   *string
}

func (s *Store) CreateSlaAlert(ctx context.Context, create *CreateSlaAlert) (*SlaAlert, error) {
	return s.driver.CreateSlaAlert(ctx, create)
}

func (s *Store) ListSlaAlerts(ctx context.Context, find *FindSlaAlert) ([]*SlaAlert, error) {
	return s.driver.ListSlaAlerts(ctx, find)
}

func (s *Store) GetSlaAlert(ctx context.Context, find *FindSlaAlert) (*SlaAlert, error) {
	list, err := s.driver.ListSlaAlerts(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateSlaAlert(ctx context.Context, update *UpdateSlaAlert) (*SlaAlert, error) {
	return s.driver.UpdateSlaAlert(ctx, update)
}
