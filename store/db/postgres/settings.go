package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avito-tech/accountant-sla/store"
)

func (d *DB) GetGlobalSettings(ctx context.Context) (*store.GlobalSettings, error) {
	g := &store.GlobalSettings{}
	var managerIDs string
	stmt := `SELECT default_timezone, default_sla_threshold_minutes, max_escalations, escalation_interval_minutes,
		warning_percent, ai_confidence_threshold, keyword_confidence_threshold, classification_cache_ttl_sec,
		global_manager_telegram_ids, data_retention_days, message_preview_length, updated_ts
		FROM global_settings WHERE id = 1`
	err := d.db.QueryRowContext(ctx, stmt).Scan(&g.DefaultTimezone, &g.DefaultSLAThresholdMinutes, &g.MaxEscalations,
		&g.EscalationIntervalMinutes, &g.WarningPercent, &g.AIConfidenceThreshold, &g.KeywordConfidenceThreshold,
		&g.ClassificationCacheTTLSec, &managerIDs, &g.DataRetentionDays, &g.MessagePreviewLength, &g.UpdatedTs)
	if err != nil {
		return nil, fmt.Errorf("failed to get global settings: %w", err)
	}
	_ = json.Unmarshal([]byte(managerIDs), &g.GlobalManagerTelegramIDs)
	return g, nil
}

func (d *DB) UpdateGlobalSettings(ctx context.Context, update *store.UpdateGlobalSettings) (*store.GlobalSettings, error) {
	set, args := []string{"updated_ts = " + placeholder(1)}, []any{nowUnix()}
	if update.DefaultTimezone != nil {
		set, args = append(set, "default_timezone = "+placeholder(len(args)+1)), append(args, *update.DefaultTimezone)
	}
	if update.DefaultSLAThresholdMinutes != nil {
		set, args = append(set, "default_sla_threshold_minutes = "+placeholder(len(args)+1)), append(args, *update.DefaultSLAThresholdMinutes)
	}
	if update.MaxEscalations != nil {
		set, args = append(set, "max_escalations = "+placeholder(len(args)+1)), append(args, *update.MaxEscalations)
	}
	if update.EscalationIntervalMinutes != nil {
		set, args = append(set, "escalation_interval_minutes = "+placeholder(len(args)+1)), append(args, *update.EscalationIntervalMinutes)
	}
	if update.WarningPercent != nil {
		set, args = append(set, "warning_percent = "+placeholder(len(args)+1)), append(args, *update.WarningPercent)
	}
	if update.AIConfidenceThreshold != nil {
		set, args = append(set, "ai_confidence_threshold = "+placeholder(len(args)+1)), append(args, *update.AIConfidenceThreshold)
	}
	if update.KeywordConfidenceThreshold != nil {
		set, args = append(set, "keyword_confidence_threshold = "+placeholder(len(args)+1)), append(args, *update.KeywordConfidenceThreshold)
	}
	if update.ClassificationCacheTTLSec != nil {
		set, args = append(set, "classification_cache_ttl_sec = "+placeholder(len(args)+1)), append(args, *update.ClassificationCacheTTLSec)
	}
	if update.GlobalManagerTelegramIDs != nil {
		b, _ := json.Marshal(*update.GlobalManagerTelegramIDs)
		set, args = append(set, "global_manager_telegram_ids = "+placeholder(len(args)+1)), append(args, string(b))
	}
	if update.DataRetentionDays != nil {
		set, args = append(set, "data_retention_days = "+placeholder(len(args)+1)), append(args, *update.DataRetentionDays)
	}
	if update.MessagePreviewLength != nil {
		set, args = append(set, "message_preview_length = "+placeholder(len(args)+1)), append(args, *update.MessagePreviewLength)
	}

	stmt := `UPDATE global_settings SET ` + strings.Join(set, ", ") + ` WHERE id = 1`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to update global settings: %w", err)
	}
	return d.GetGlobalSettings(ctx)
}
