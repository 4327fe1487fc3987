package rpcapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avito-tech/accountant-sla/internal/apperror"
	"github.com/avito-tech/accountant-sla/store"
)

func (s *Server) registerSettingsRoutes(g *echo.Group) {
	g.GET("/settings", s.getGlobalSettings, requireRole(roleAuthed))
	g.PATCH("/settings", s.updateGlobalSettings, requireRole(roleAdmin))
	g.GET("/settings/holidays", s.getGlobalHolidays, requireRole(roleAuthed))
	g.POST("/settings/holidays", s.addGlobalHoliday, requireRole(roleAdmin))
	g.DELETE("/settings/holidays/:date", s.removeGlobalHoliday, requireRole(roleAdmin))
	g.POST("/settings/holidays/bulk", s.bulkAddHolidays, requireRole(roleAdmin))
	g.POST("/settings/holidays/seed-russian", s.seedRussianHolidays, requireRole(roleAdmin))
}

type globalSettingsView struct {
	DefaultTimezone            string  `json:"defaultTimezone"`
	DefaultSLAThresholdMinutes int     `json:"defaultSlaThresholdMinutes"`
	MaxEscalations             int     `json:"maxEscalations"`
	EscalationIntervalMinutes  int     `json:"escalationIntervalMinutes"`
	WarningPercent             int     `json:"warningPercent"`
	AIConfidenceThreshold      float64 `json:"aiConfidenceThreshold"`
	KeywordConfidenceThreshold float64 `json:"keywordConfidenceThreshold"`
	ClassificationCacheTTLSec  int     `json:"classificationCacheTtlSec"`
	GlobalManagerTelegramIDs   []id64  `json:"globalManagerTelegramIds"`
	DataRetentionDays          int     `json:"dataRetentionDays"`
	MessagePreviewLength       int     `json:"messagePreviewLength"`
}

func toGlobalSettingsView(g *store.GlobalSettings) globalSettingsView {
	ids := make([]id64, 0, len(g.GlobalManagerTelegramIDs))
	for _, v := range g.GlobalManagerTelegramIDs {
		ids = append(ids, id64(v))
	}
	return globalSettingsView{
		DefaultTimezone: g.DefaultTimezone, DefaultSLAThresholdMinutes: g.DefaultSLAThresholdMinutes,
		MaxEscalations: g.MaxEscalations, EscalationIntervalMinutes: g.EscalationIntervalMinutes,
		WarningPercent: g.WarningPercent, AIConfidenceThreshold: g.AIConfidenceThreshold,
		KeywordConfidenceThreshold: g.KeywordConfidenceThreshold, ClassificationCacheTTLSec: g.ClassificationCacheTTLSec,
		GlobalManagerTelegramIDs: ids, DataRetentionDays: g.DataRetentionDays, MessagePreviewLength: g.MessagePreviewLength,
	}
}

func (s *Server) getGlobalSettings(c echo.Context) error {
	settings, err := s.Store.GetGlobalSettings(c.Request().Context())
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load global settings"))
	}
	return c.JSON(http.StatusOK, toGlobalSettingsView(settings))
}

type updateGlobalSettingsBody struct {
	DefaultTimezone            *string  `json:"defaultTimezone"`
	DefaultSLAThresholdMinutes *int     `json:"defaultSlaThresholdMinutes"`
	MaxEscalations             *int     `json:"maxEscalations"`
	EscalationIntervalMinutes  *int     `json:"escalationIntervalMinutes"`
	WarningPercent             *int     `json:"warningPercent"`
	AIConfidenceThreshold      *float64 `json:"aiConfidenceThreshold"`
	KeywordConfidenceThreshold *float64 `json:"keywordConfidenceThreshold"`
	ClassificationCacheTTLSec  *int     `json:"classificationCacheTtlSec"`
	GlobalManagerTelegramIDs   *[]id64  `json:"globalManagerTelegramIds"`
	DataRetentionDays          *int     `json:"dataRetentionDays"`
	MessagePreviewLength       *int     `json:"messagePreviewLength"`
}

func (s *Server) updateGlobalSettings(c echo.Context) error {
	var body updateGlobalSettingsBody
	if err := c.Bind(&body); err != nil {
		return handleError(c, apperror.Validation("invalid request body"))
	}
	update := &store.UpdateGlobalSettings{
		DefaultTimezone: body.DefaultTimezone, DefaultSLAThresholdMinutes: body.DefaultSLAThresholdMinutes,
		MaxEscalations: body.MaxEscalations, EscalationIntervalMinutes: body.EscalationIntervalMinutes,
		WarningPercent: body.WarningPercent, AIConfidenceThreshold: body.AIConfidenceThreshold,
		KeywordConfidenceThreshold: body.KeywordConfidenceThreshold, ClassificationCacheTTLSec: body.ClassificationCacheTTLSec,
		DataRetentionDays: body.DataRetentionDays, MessagePreviewLength: body.MessagePreviewLength,
	}
	if body.GlobalManagerTelegramIDs != nil {
		ids := make([]int64, 0, len(*body.GlobalManagerTelegramIDs))
		for _, v := range *body.GlobalManagerTelegramIDs {
			ids = append(ids, int64(v))
		}
		update.GlobalManagerTelegramIDs = &ids
	}
	settings, err := s.Store.UpdateGlobalSettings(c.Request().Context(), update)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to update global settings"))
	}
	return c.JSON(http.StatusOK, toGlobalSettingsView(settings))
}

func (s *Server) getGlobalHolidays(c echo.Context) error {
	find := &store.FindHoliday{}
	if v := c.QueryParam("yearFrom"); v != "" {
		yearFrom, _ := parseYear(v)
		find.YearFrom = yearFrom
	}
	if v := c.QueryParam("yearTo"); v != "" {
		yearTo, _ := parseYear(v)
		find.YearTo = yearTo
	}
	list, err := s.Store.ListHolidays(c.Request().Context(), find)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to list global holidays"))
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) addGlobalHoliday(c echo.Context) error {
	var body holidayBody
	if err := c.Bind(&body); err != nil || body.Date == "" {
		return handleError(c, apperror.Validation("date is required"))
	}
	year, ok := holidayYear(body.Date)
	if !ok || !validHolidayYear(year) {
		return handleError(c, apperror.Validation("date must fall within %d-%d", minHolidayYear, maxHolidayYear))
	}
	h, err := s.Store.CreateHoliday(c.Request().Context(), &store.CreateHoliday{Date: body.Date, Name: body.Name})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to create global holiday"))
	}
	return c.JSON(http.StatusCreated, h)
}

func (s *Server) removeGlobalHoliday(c echo.Context) error {
	date := c.Param("date")
	if err := s.Store.DeleteHoliday(c.Request().Context(), &store.DeleteHoliday{Date: date}); err != nil {
		return handleError(c, apperror.Wrap(err, "failed to delete global holiday"))
	}
	return c.NoContent(http.StatusNoContent)
}

type bulkAddHolidaysBody struct {
	Holidays []holidayBody `json:"holidays"`
}

func (s *Server) bulkAddHolidays(c echo.Context) error {
	var body bulkAddHolidaysBody
	if err := c.Bind(&body); err != nil || len(body.Holidays) == 0 {
		return handleError(c, apperror.Validation("holidays are required"))
	}
	for _, hb := range body.Holidays {
		year, ok := holidayYear(hb.Date)
		if !ok || !validHolidayYear(year) {
			return handleError(c, apperror.Validation("date %q must fall within %d-%d", hb.Date, minHolidayYear, maxHolidayYear))
		}
	}
	created := make([]*store.Holiday, 0, len(body.Holidays))
	for _, hb := range body.Holidays {
		h, err := s.Store.CreateHoliday(c.Request().Context(), &store.CreateHoliday{Date: hb.Date, Name: hb.Name})
		if err != nil {
			return handleError(c, apperror.Wrap(err, "failed to create holiday %q", hb.Date))
		}
		created = append(created, h)
	}
	return c.JSON(http.StatusCreated, created)
}

// seedRussianHolidays inserts the fixed public-holiday calendar for the
// default Europe/Moscow installation. A date already present keeps its
// row and takes the calendar's name.
func (s *Server) seedRussianHolidays(c echo.Context) error {
	created := make([]*store.Holiday, 0, len(russianPublicHolidays))
	for _, hb := range russianPublicHolidays {
		h, err := s.Store.CreateHoliday(c.Request().Context(), &store.CreateHoliday{Date: hb.Date, Name: hb.Name})
		if err != nil {
			return handleError(c, apperror.Wrap(err, "failed to seed holiday %q", hb.Date))
		}
		created = append(created, h)
	}
	return c.JSON(http.StatusCreated, created)
}

func parseYear(v string) (int, bool) {
	year, ok := holidayYear(v + "-01-01")
	return year, ok
}
