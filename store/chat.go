package store

import "context"

// ChatType mirrors the transport's conversation kinds.
type ChatType string

const (
	ChatTypePrivate    ChatType = "private"
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
)

// Chat is a monitored conversation.
type Chat struct {
	ID                   int64
	TransportChatID      int64
	Type                 ChatType
	Title                string
	AssignedAccountantID int64
	AccountantUsernames  []string
	SLAThresholdMinutes  int
	MonitoringEnabled    bool
	Is24x7               bool
	ManagerTelegramIDs   []int64
	CreatedTs            int64
	UpdatedTs            int64
	DeletedTs            *int64
}

type FindChat struct {
	ID                *int64
	TransportChatID   *int64
	MonitoringEnabled *bool
	IncludeDeleted    bool
}

type UpdateChat struct {
	ID                   int64
	Title                *string
	AssignedAccountantID *int64
	AccountantUsernames  *[]string
	SLAThresholdMinutes  *int
	MonitoringEnabled    *bool
	Is24x7               *bool
	ManagerTelegramIDs   *[]int64
	DeletedTs            *int64
}

type DeleteChat struct {
	ID int64
}

func (s *Store) CreateChat(ctx context.Context, create *Chat) (*Chat, error) {
	return s.driver.CreateChat(ctx, create)
}

func (s *Store) ListChats(ctx context.Context, find *FindChat) ([]*Chat, error) {
	return s.driver.ListChats(ctx, find)
}

func (s *Store) GetChat(ctx context.Context, find *FindChat) (*Chat, error) {
	list, err := s.driver.ListChats(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateChat(ctx context.Context, update *UpdateChat) (*Chat, error) {
	return s.driver.UpdateChat(ctx, update)
}

func (s *Store) DeleteChat(ctx context.Context, del *DeleteChat) error {
	return s.driver.DeleteChat(ctx, del)
}
