package store

import (
	"context"
	"time"
)

// Driver is implemented by each storage backend (postgres, sqlite). The
// Store facade forwards to it; callers never depend on Driver directly.
type Driver interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	CreateChat(ctx context.Context, create *Chat) (*Chat, error)
	ListChats(ctx context.Context, find *FindChat) ([]*Chat, error)
	UpdateChat(ctx context.Context, update *UpdateChat) (*Chat, error)
	DeleteChat(ctx context.Context, del *DeleteChat) error

	ListWorkingSchedule(ctx context.Context, find *FindWorkingSchedule) ([]*WorkingScheduleRow, error)
	UpsertWorkingSchedule(ctx context.Context, rows []*UpsertWorkingScheduleRow) ([]*WorkingScheduleRow, error)

	ListHolidays(ctx context.Context, find *FindHoliday) ([]*Holiday, error)
	CreateHoliday(ctx context.Context, create *CreateHoliday) (*Holiday, error)
	DeleteHoliday(ctx context.Context, del *DeleteHoliday) error

	CreateChatMessage(ctx context.Context, create *CreateChatMessage) (*ChatMessage, error)
	LatestEditVersion(ctx context.Context, chatID, messageID int64) (int, error)
	ListChatMessageVersions(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error)

	CreateClientRequest(ctx context.Context, create *CreateClientRequest) (*ClientRequest, error)
	ListClientRequests(ctx context.Context, find *FindClientRequest) ([]*ClientRequest, error)
	UpdateClientRequest(ctx context.Context, update *UpdateClientRequest) (*ClientRequest, error)

	CreateSlaAlert(ctx context.Context, create *CreateSlaAlert) (*SlaAlert, error)
	ListSlaAlerts(ctx context.Context, find *FindSlaAlert) ([]*SlaAlert, error)
	UpdateSlaAlert(ctx context.Context, update *UpdateSlaAlert) (*SlaAlert, error)

	GetClassificationCache(ctx context.Context, hash string) (*ClassificationCacheEntry, error)
	UpsertClassificationCache(ctx context.Context, entry *ClassificationCacheEntry) error

	GetGlobalSettings(ctx context.Context) (*GlobalSettings, error)
	UpdateGlobalSettings(ctx context.Context, update *UpdateGlobalSettings) (*GlobalSettings, error)

	PurgeExpiredClassificationCache(ctx context.Context, before time.Time) (int64, error)
	PurgeOldChatMessages(ctx context.Context, before time.Time) (int64, error)
	PurgeClosedClientRequests(ctx context.Context, before time.Time) (int64, error)
}
