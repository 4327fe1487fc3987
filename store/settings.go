package store

import "context"

// GlobalSettings is the singleton configuration row.
type GlobalSettings struct {
	DefaultTimezone            string
	DefaultSLAThresholdMinutes int
	MaxEscalations             int
	EscalationIntervalMinutes  int
	WarningPercent             int
	AIConfidenceThreshold      float64
	KeywordConfidenceThreshold float64
	ClassificationCacheTTLSec  int
	GlobalManagerTelegramIDs   []int64
	DataRetentionDays          int
	MessagePreviewLength       int
	UpdatedTs                  int64
}

// UpdateGlobalSettings expresses a partial update: only non-nil fields are
// written, unknown keys are rejected by the RPC boundary before this
// struct is constructed.
type UpdateGlobalSettings struct {
	DefaultTimezone            *string
	DefaultSLAThresholdMinutes *int
	MaxEscalations             *int
	EscalationIntervalMinutes  *int
	WarningPercent             *int
	AIConfidenceThreshold      *float64
	KeywordConfidenceThreshold *float64
	ClassificationCacheTTLSec  *int
	GlobalManagerTelegramIDs   *[]int64
	DataRetentionDays          *int
	MessagePreviewLength       *int
}

func (s *Store) GetGlobalSettings(ctx context.Context) (*GlobalSettings, error) {
	return s.driver.GetGlobalSettings(ctx)
}

func (s *Store) UpdateGlobalSettings(ctx context.Context, update *UpdateGlobalSettings) (*GlobalSettings, error) {
	return s.driver.UpdateGlobalSettings(ctx, update)
}
