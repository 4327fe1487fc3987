package rpcapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/avito-tech/accountant-sla/delivery"
	"github.com/avito-tech/accountant-sla/internal/apperror"
	"github.com/avito-tech/accountant-sla/store"
)

func (s *Server) registerAlertRoutes(g *echo.Group) {
	g.POST("/alerts", s.createAlert, requireRole(roleManager))
	g.POST("/alerts/:id/resolve", s.resolveAlert, requireRole(roleManager))
	g.POST("/alerts/:id/notify-accountant", s.notifyAccountant, requireRole(roleManager))
	g.PATCH("/alerts/:id/delivery-status", s.updateDeliveryStatus, requireRole(roleManager))
	g.GET("/alerts", s.getAlerts, requireRole(roleAuthed))
	g.GET("/alerts/:id", s.getAlertByID, requireRole(roleAuthed))
	g.GET("/alerts/active", s.getActiveAlerts, requireRole(roleAuthed))
	g.GET("/alerts/stats", s.getAlertStats, requireRole(roleAuthed))
}

type alertView struct {
	ID                id64    `json:"id"`
	UID               string  `json:"uid"`
	RequestID         id64    `json:"requestId"`
	AlertType         string  `json:"alertType"`
	EscalationLevel   int     `json:"escalationLevel"`
	MinutesElapsed    float64 `json:"minutesElapsed"`
	ManagerTelegramID id64    `json:"managerTelegramId"`
	DeliveryStatus    string  `json:"deliveryStatus"`
	ResolvedAction    *string `json:"resolvedAction,omitempty"`
}

func toAlertView(a *store.SlaAlert) alertView {
	var resolved *string
	if a.ResolvedAction != nil {
		v := string(*a.ResolvedAction)
		resolved = &v
	}
	return alertView{
		ID: id64(a.ID), UID: a.UID, RequestID: id64(a.RequestID), AlertType: string(a.AlertType),
		EscalationLevel: a.EscalationLevel, MinutesElapsed: a.MinutesElapsed, ManagerTelegramID: id64(a.ManagerTelegramID),
		DeliveryStatus: string(a.DeliveryStatus), ResolvedAction: resolved,
	}
}

type createAlertBody struct {
	RequestID         id64    `json:"requestId"`
	AlertType         string  `json:"alertType"`
	EscalationLevel   int     `json:"escalationLevel"`
	MinutesElapsed    float64 `json:"minutesElapsed"`
	ManagerTelegramID id64    `json:"managerTelegramId"`
}

func (s *Server) createAlert(c echo.Context) error {
	var body createAlertBody
	if err := c.Bind(&body); err != nil || body.RequestID == 0 || body.ManagerTelegramID == 0 {
		return handleError(c, apperror.Validation("requestId and managerTelegramId are required"))
	}
	a, err := s.Store.CreateSlaAlert(c.Request().Context(), &store.CreateSlaAlert{
		UID: shortuuid.New(), RequestID: int64(body.RequestID), AlertType: store.AlertType(body.AlertType),
		EscalationLevel: body.EscalationLevel, MinutesElapsed: body.MinutesElapsed, ManagerTelegramID: int64(body.ManagerTelegramID),
	})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to create alert"))
	}
	s.Metrics.RecordAlertCreated(body.EscalationLevel)
	return c.JSON(http.StatusCreated, toAlertView(a))
}

type resolveAlertBody struct {
	Action string `json:"action"`
	UserID *id64  `json:"userId"`
}

func (s *Server) resolveAlert(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	var body resolveAlertBody
	if err := c.Bind(&body); err != nil || body.Action == "" {
		return handleError(c, apperror.Validation("action is required"))
	}
	var userID *int64
	if body.UserID != nil {
		v := int64(*body.UserID)
		userID = &v
	}
	if err := s.Alerts.ResolveAlert(c.Request().Context(), id, store.ResolvedAction(body.Action), userID); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) notifyAccountant(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	if err := s.Callback.Handle(c.Request().Context(), delivery.CallbackAction{
		AlertID: id, Action: delivery.ActionNotifyAccountant,
	}); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type updateDeliveryStatusBody struct {
	DeliveryStatus    string `json:"deliveryStatus"`
	TelegramMessageID *id64  `json:"telegramMessageId"`
}

func (s *Server) updateDeliveryStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	var body updateDeliveryStatusBody
	if err := c.Bind(&body); err != nil || body.DeliveryStatus == "" {
		return handleError(c, apperror.Validation("deliveryStatus is required"))
	}
	status := store.DeliveryStatus(body.DeliveryStatus)
	update := &store.UpdateSlaAlert{ID: id, DeliveryStatus: &status}
	if body.TelegramMessageID != nil {
		v := int64(*body.TelegramMessageID)
		update.TelegramMessageID = &v
	}
	a, err := s.Store.UpdateSlaAlert(c.Request().Context(), update)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to update delivery status"))
	}
	return c.JSON(http.StatusOK, toAlertView(a))
}

func (s *Server) getAlerts(c echo.Context) error {
	find := &store.FindSlaAlert{}
	if v := c.QueryParam("requestId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return handleError(c, apperror.Validation("invalid requestId"))
		}
		find.RequestID = &id
	}
	if c.QueryParam("unresolvedOnly") == "true" {
		find.UnresolvedOnly = true
	}
	list, err := s.Store.ListSlaAlerts(c.Request().Context(), find)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to list alerts"))
	}
	views := make([]alertView, 0, len(list))
	for _, a := range list {
		views = append(views, toAlertView(a))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) getAlertByID(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	a, err := s.Store.GetSlaAlert(c.Request().Context(), &store.FindSlaAlert{ID: &id})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load alert"))
	}
	if a == nil {
		return handleError(c, apperror.NotFound("alert %d not found", id))
	}
	return c.JSON(http.StatusOK, toAlertView(a))
}

func (s *Server) getActiveAlerts(c echo.Context) error {
	list, err := s.Store.ListSlaAlerts(c.Request().Context(), &store.FindSlaAlert{UnresolvedOnly: true})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to list active alerts"))
	}
	views := make([]alertView, 0, len(list))
	for _, a := range list {
		views = append(views, toAlertView(a))
	}
	return c.JSON(http.StatusOK, views)
}

type alertStatsResponse struct {
	Total           int            `json:"total"`
	ByLevel         map[string]int `json:"byLevel"`
	ByDeliveryState map[string]int `json:"byDeliveryState"`
	Unresolved      int            `json:"unresolved"`
}

func (s *Server) getAlertStats(c echo.Context) error {
	list, err := s.Store.ListSlaAlerts(c.Request().Context(), &store.FindSlaAlert{})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to compute alert stats"))
	}
	stats := alertStatsResponse{ByLevel: map[string]int{}, ByDeliveryState: map[string]int{}}
	for _, a := range list {
		stats.Total++
		stats.ByLevel[strconv.Itoa(a.EscalationLevel)]++
		stats.ByDeliveryState[string(a.DeliveryStatus)]++
		if a.ResolvedAction == nil {
			stats.Unresolved++
		}
	}
	return c.JSON(http.StatusOK, stats)
}
