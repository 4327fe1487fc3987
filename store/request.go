package store

import (
	"context"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending        RequestStatus = "pending"
	RequestStatusInProgress     RequestStatus = "in_progress"
	RequestStatusWaitingClient  RequestStatus = "waiting_client"
	RequestStatusTransferred    RequestStatus = "transferred"
	RequestStatusAnswered       RequestStatus = "answered"
	RequestStatusEscalated      RequestStatus = "escalated"
	RequestStatusClosed         RequestStatus = "closed"
)

// ClientRequest is a classified, SLA-tracked client message.
type ClientRequest struct {
	ID                  int64
	UID                 string
	ChatID              int64
	MessageID           int64
	EditVersion         int
	Status              RequestStatus
	ReceivedAt          time.Time
	Category            string
	Confidence          float64
	ClassifierModel     string
	ThresholdMinutes    int
	SlaTimerStartedAt   *time.Time
	SlaTimerPausedAt    *time.Time
	SlaBreached         bool
	ResponseAt          *time.Time
	ResponseTimeMinutes *float64
	ResponseMessageID   *int64
	RespondedBy         *int64
	SlaWorkingMinutes   *float64
	CreatedTs           int64
	UpdatedTs           int64
}

type CreateClientRequest struct {
	UID              string
	ChatID           int64
	MessageID        int64
	EditVersion      int
	ReceivedAt       time.Time
	Category         string
	Confidence       float64
	ClassifierModel  string
	ThresholdMinutes int
}

type FindClientRequest struct {
	ID              *int64
	UID             *string
	ChatID          *int64
	Status          *RequestStatus
	OpenOnly        bool // status NOT IN (answered, closed)
	OrderByOldest   bool
	Limit           int
}

type UpdateClientRequest struct {
	ID                  int64
	Status              *RequestStatus
	SlaTimerStartedAt   *time.Time
	ClearSlaTimerPaused bool
	SlaTimerPausedAt    *time.Time
	SlaBreached         *bool
	ResponseAt          *time.Time
	ResponseTimeMinutes *float64
	ResponseMessageID   *int64
	RespondedBy         *int64
	SlaWorkingMinutes   *float64
}

func (s *Store) CreateClientRequest(ctx context.Context, create *CreateClientRequest) (*ClientRequest, error) {
	return s.driver.CreateClientRequest(ctx, create)
}

func (s *Store) ListClientRequests(ctx context.Context, find *FindClientRequest) ([]*ClientRequest, error) {
	return s.driver.ListClientRequests(ctx, find)
}

func (s *Store) GetClientRequest(ctx context.Context, find *FindClientRequest) (*ClientRequest, error) {
	find.Limit = 1
	list, err := s.driver.ListClientRequests(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateClientRequest(ctx context.Context, update *UpdateClientRequest) (*ClientRequest, error) {
	return s.driver.UpdateClientRequest(ctx, update)
}
