// Package ingest turns inbound chat events into the append-only message
// log and, for client messages that look like requests, into SLA-tracked
// ClientRequest rows. It also routes accountant replies to the timer
// manager's stop path.
package ingest

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/avito-tech/accountant-sla/alert"
	"github.com/avito-tech/accountant-sla/classify"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/store/cache"
	"github.com/avito-tech/accountant-sla/timer"
)

// messageRateLimitWindow and messageRateLimitMax bound the per-user
// client-facing message-frequency limit: one counter entry per sender,
// in-memory, swept periodically by the cache's own background goroutine.
const (
	messageRateLimitWindow = time.Minute
	messageRateLimitMax    = 20
)

// MessageEvent is the transport-agnostic shape of an inbound chat message,
// covering both first delivery and edits.
type MessageEvent struct {
	ChatID             int64
	TransportChatID    int64
	MessageID          int64
	SenderTelegramID   int64
	SenderUsername     string
	Text               string
	IsEdit             bool
	ReplyToMessageID   *int64
	MessageType        string
	TransportTimestamp time.Time
}

// Outcome reports what ingest did with an event, mainly for logging and
// tests; callers do not need to branch on it.
type Outcome struct {
	Stored          bool
	CreatedRequest  *store.ClientRequest
	ResolvedRequest *store.ClientRequest
	RateLimited     bool
}

type Service struct {
	store       *store.Store
	classify    *classify.Service
	timer       *timer.Manager
	alerts      *alert.Service
	rateLimiter *cache.Cache[int]
}

func NewService(st *store.Store, classifier *classify.Service, tm *timer.Manager, alerts *alert.Service) *Service {
	return &Service{
		store: st, classify: classifier, timer: tm, alerts: alerts,
		rateLimiter: cache.New[int](cache.Config{DefaultTTL: messageRateLimitWindow, CleanupInterval: messageRateLimitWindow}),
	}
}

// Close stops the rate limiter's background sweep goroutine.
func (s *Service) Close() {
	s.rateLimiter.Close()
}

// HandleMessage appends the message to the log and, if it is a client
// message in a monitored chat, runs the classifier and opens a request.
func (s *Service) HandleMessage(ctx context.Context, ev MessageEvent) (Outcome, error) {
	chat, err := s.store.GetChat(ctx, &store.FindChat{ID: &ev.ChatID})
	if err != nil {
		return Outcome{}, errors.Wrap(err, "failed to load chat")
	}
	if chat == nil {
		return Outcome{}, errors.Errorf("chat %d not found", ev.ChatID)
	}

	editVersion, err := s.nextEditVersion(ctx, ev)
	if err != nil {
		return Outcome{}, err
	}

	isAccountant := s.isAccountantMessage(chat, ev)
	if _, err := s.store.CreateChatMessage(ctx, &store.CreateChatMessage{
		ChatID: ev.ChatID, MessageID: ev.MessageID, EditVersion: editVersion,
		SenderTelegramID: ev.SenderTelegramID, SenderUsername: ev.SenderUsername, Text: ev.Text,
		IsAccountant: isAccountant, ReplyToMessageID: ev.ReplyToMessageID, MessageType: ev.MessageType,
		TransportTimestamp: ev.TransportTimestamp,
	}); err != nil {
		return Outcome{}, errors.Wrap(err, "failed to append chat message")
	}

	if ev.IsEdit {
		// Edited messages are logged for audit trail but never re-trigger
		// classification or resolve a request on their own.
		return Outcome{Stored: true}, nil
	}

	if isAccountant {
		resolved, err := s.handleAccountantReply(ctx, ev)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Stored: true, ResolvedRequest: resolved}, nil
	}

	if !chat.MonitoringEnabled {
		return Outcome{Stored: true}, nil
	}

	if s.rateLimited(ev.SenderTelegramID) {
		slog.Warn("client message rate-limited, skipping classification", "sender_telegram_id", ev.SenderTelegramID, "chat_id", ev.ChatID)
		return Outcome{Stored: true, RateLimited: true}, nil
	}

	created, err := s.handleClientMessage(ctx, chat, ev)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Stored: true, CreatedRequest: created}, nil
}

func (s *Service) nextEditVersion(ctx context.Context, ev MessageEvent) (int, error) {
	if !ev.IsEdit {
		return 0, nil
	}
	latest, err := s.store.LatestEditVersion(ctx, ev.ChatID, ev.MessageID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to look up latest edit version")
	}
	if latest < 0 {
		slog.Warn("edit event for message with no prior version, storing as version 0", "chat_id", ev.ChatID, "message_id", ev.MessageID)
		return 0, nil
	}
	return latest + 1, nil
}

// isAccountantMessage distinguishes client messages from accountant
// replies by matching the sender against the chat's assigned accountant
// or its accountant-username allowlist.
func (s *Service) isAccountantMessage(chat *store.Chat, ev MessageEvent) bool {
	if chat.AssignedAccountantID != 0 && chat.AssignedAccountantID == ev.SenderTelegramID {
		return true
	}
	for _, username := range chat.AccountantUsernames {
		if username != "" && username == ev.SenderUsername {
			return true
		}
	}
	return false
}

// rateLimited enforces the per-user message-frequency limit on the
// client-facing side: once a sender crosses messageRateLimitMax messages
// within messageRateLimitWindow, further messages in that window are
// stored but not classified.
func (s *Service) rateLimited(senderTelegramID int64) bool {
	key := strconv.FormatInt(senderTelegramID, 10)
	count := 0
	if v, ok := s.rateLimiter.Get(key); ok {
		count = v
	}
	count++
	s.rateLimiter.Set(key, count, messageRateLimitWindow)
	return count > messageRateLimitMax
}

func (s *Service) handleClientMessage(ctx context.Context, chat *store.Chat, ev MessageEvent) (*store.ClientRequest, error) {
	result, err := s.classify.Classify(ctx, ev.Text)
	if err != nil {
		return nil, errors.Wrap(err, "failed to classify message")
	}
	if result.Category != classify.CategoryRequest {
		return nil, nil
	}

	threshold := chat.SLAThresholdMinutes
	if threshold <= 0 {
		settings, err := s.store.GetGlobalSettings(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load global settings")
		}
		threshold = settings.DefaultSLAThresholdMinutes
	}

	req, err := s.store.CreateClientRequest(ctx, &store.CreateClientRequest{
		UID: shortuuid.New(), ChatID: ev.ChatID, MessageID: ev.MessageID, ReceivedAt: ev.TransportTimestamp,
		Category: string(result.Category), Confidence: result.Confidence, ClassifierModel: result.Model,
		ThresholdMinutes: threshold,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client request")
	}

	if err := s.timer.StartTimer(ctx, req.ID, ev.ChatID, threshold, ev.TransportTimestamp); err != nil {
		return nil, errors.Wrap(err, "failed to start sla timer")
	}
	return req, nil
}

// handleAccountantReply resolves the oldest open request in the chat,
// preferring an explicit reply-to match over FIFO order.
func (s *Service) handleAccountantReply(ctx context.Context, ev MessageEvent) (*store.ClientRequest, error) {
	open, err := s.store.ListClientRequests(ctx, &store.FindClientRequest{ChatID: &ev.ChatID, OpenOnly: true, OrderByOldest: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list open requests")
	}
	if len(open) == 0 {
		return nil, nil
	}

	target := open[0]
	if ev.ReplyToMessageID != nil {
		for _, req := range open {
			if req.MessageID == *ev.ReplyToMessageID {
				target = req
				break
			}
		}
	}

	result, err := s.timer.StopTimer(ctx, timer.StopParams{
		RequestID: target.ID, RespondedBy: ev.SenderTelegramID, ResponseMessageID: ev.MessageID, ResponseAt: ev.TransportTimestamp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to stop sla timer")
	}
	if result.AlreadyStopped {
		return target, nil
	}

	if err := s.alerts.OnAccountantResponseDetected(ctx, target.ID); err != nil {
		return nil, errors.Wrap(err, "failed to cancel escalation chain")
	}
	return target, nil
}
