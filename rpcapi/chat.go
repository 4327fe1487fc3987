package rpcapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avito-tech/accountant-sla/internal/apperror"
	"github.com/avito-tech/accountant-sla/store"
)

func (s *Server) registerChatRoutes(g *echo.Group) {
	g.POST("/chats", s.registerChat, requireRole(roleManager))
	g.PATCH("/chats/:id", s.updateChat, requireRole(roleManager))
	g.PUT("/chats/:id/schedule", s.updateWorkingSchedule, requireRole(roleManager))
	g.POST("/chats/:id/holidays", s.addHoliday, requireRole(roleManager))
	g.DELETE("/chats/:id/holidays/:date", s.removeHoliday, requireRole(roleManager))
	g.GET("/chats", s.getChats, requireRole(roleAuthed))
	g.GET("/chats/:id", s.getChatByID, requireRole(roleAuthed))
	g.GET("/chats/:id/schedule", s.getWorkingSchedule, requireRole(roleAuthed))
	g.GET("/chats/:id/holidays", s.getHolidays, requireRole(roleAuthed))
}

type chatView struct {
	ID                   id64     `json:"id"`
	TransportChatID      id64     `json:"transportChatId"`
	Type                 string   `json:"type"`
	Title                string   `json:"title"`
	AssignedAccountantID id64     `json:"assignedAccountantId"`
	AccountantUsernames  []string `json:"accountantUsernames"`
	SLAThresholdMinutes  int      `json:"slaThresholdMinutes"`
	MonitoringEnabled    bool     `json:"monitoringEnabled"`
	Is24x7               bool     `json:"is24x7"`
	ManagerTelegramIDs   []id64   `json:"managerTelegramIds"`
}

func toChatView(ch *store.Chat) chatView {
	managers := make([]id64, 0, len(ch.ManagerTelegramIDs))
	for _, m := range ch.ManagerTelegramIDs {
		managers = append(managers, id64(m))
	}
	return chatView{
		ID: id64(ch.ID), TransportChatID: id64(ch.TransportChatID), Type: string(ch.Type), Title: ch.Title,
		AssignedAccountantID: id64(ch.AssignedAccountantID), AccountantUsernames: ch.AccountantUsernames,
		SLAThresholdMinutes: ch.SLAThresholdMinutes, MonitoringEnabled: ch.MonitoringEnabled, Is24x7: ch.Is24x7,
		ManagerTelegramIDs: managers,
	}
}

type registerChatBody struct {
	TransportChatID      id64     `json:"transportChatId"`
	Type                 string   `json:"type"`
	Title                string   `json:"title"`
	AssignedAccountantID id64     `json:"assignedAccountantId"`
	AccountantUsernames  []string `json:"accountantUsernames"`
	SLAThresholdMinutes  int      `json:"slaThresholdMinutes"`
	MonitoringEnabled    bool     `json:"monitoringEnabled"`
	Is24x7               bool     `json:"is24x7"`
	ManagerTelegramIDs   []id64   `json:"managerTelegramIds"`
}

func (s *Server) registerChat(c echo.Context) error {
	var body registerChatBody
	if err := c.Bind(&body); err != nil || body.TransportChatID == 0 || body.Type == "" {
		return handleError(c, apperror.Validation("transportChatId and type are required"))
	}
	managers := make([]int64, 0, len(body.ManagerTelegramIDs))
	for _, m := range body.ManagerTelegramIDs {
		managers = append(managers, int64(m))
	}
	ch, err := s.Store.CreateChat(c.Request().Context(), &store.Chat{
		TransportChatID: int64(body.TransportChatID), Type: store.ChatType(body.Type), Title: body.Title,
		AssignedAccountantID: int64(body.AssignedAccountantID), AccountantUsernames: body.AccountantUsernames,
		SLAThresholdMinutes: body.SLAThresholdMinutes, MonitoringEnabled: body.MonitoringEnabled, Is24x7: body.Is24x7,
		ManagerTelegramIDs: managers,
	})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to register chat"))
	}
	return c.JSON(http.StatusCreated, toChatView(ch))
}

type updateChatBody struct {
	Title                *string   `json:"title"`
	AssignedAccountantID *id64     `json:"assignedAccountantId"`
	AccountantUsernames  *[]string `json:"accountantUsernames"`
	SLAThresholdMinutes  *int      `json:"slaThresholdMinutes"`
	MonitoringEnabled    *bool     `json:"monitoringEnabled"`
	Is24x7               *bool     `json:"is24x7"`
	ManagerTelegramIDs   *[]id64   `json:"managerTelegramIds"`
}

func (s *Server) updateChat(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	var body updateChatBody
	if err := c.Bind(&body); err != nil {
		return handleError(c, apperror.Validation("invalid request body"))
	}
	update := &store.UpdateChat{
		ID: id, Title: body.Title, SLAThresholdMinutes: body.SLAThresholdMinutes,
		MonitoringEnabled: body.MonitoringEnabled, Is24x7: body.Is24x7, AccountantUsernames: body.AccountantUsernames,
	}
	if body.AssignedAccountantID != nil {
		v := int64(*body.AssignedAccountantID)
		update.AssignedAccountantID = &v
	}
	if body.ManagerTelegramIDs != nil {
		ids := make([]int64, 0, len(*body.ManagerTelegramIDs))
		for _, m := range *body.ManagerTelegramIDs {
			ids = append(ids, int64(m))
		}
		update.ManagerTelegramIDs = &ids
	}
	ch, err := s.Store.UpdateChat(c.Request().Context(), update)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to update chat"))
	}
	return c.JSON(http.StatusOK, toChatView(ch))
}

func (s *Server) getChats(c echo.Context) error {
	find := &store.FindChat{}
	if v := c.QueryParam("monitoringEnabled"); v != "" {
		b := v == "true"
		find.MonitoringEnabled = &b
	}
	list, err := s.Store.ListChats(c.Request().Context(), find)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to list chats"))
	}
	views := make([]chatView, 0, len(list))
	for _, ch := range list {
		views = append(views, toChatView(ch))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) getChatByID(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	ch, err := s.Store.GetChat(c.Request().Context(), &store.FindChat{ID: &id})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load chat"))
	}
	if ch == nil {
		return handleError(c, apperror.NotFound("chat %d not found", id))
	}
	return c.JSON(http.StatusOK, toChatView(ch))
}

type scheduleRowBody struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Timezone  string `json:"timezone"`
}

type updateWorkingScheduleBody struct {
	Rows []scheduleRowBody `json:"rows"`
}

func (s *Server) updateWorkingSchedule(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	var body updateWorkingScheduleBody
	if err := c.Bind(&body); err != nil || len(body.Rows) == 0 {
		return handleError(c, apperror.Validation("rows are required"))
	}
	rows := make([]*store.UpsertWorkingScheduleRow, 0, len(body.Rows))
	for _, r := range body.Rows {
		if r.Weekday < 1 || r.Weekday > 7 {
			return handleError(c, apperror.Validation("weekday must be 1..7"))
		}
		rows = append(rows, &store.UpsertWorkingScheduleRow{
			ChatID: &id, Weekday: r.Weekday, StartTime: r.StartTime, EndTime: r.EndTime, Timezone: r.Timezone,
		})
	}
	saved, err := s.Store.UpsertWorkingSchedule(c.Request().Context(), rows)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to update working schedule"))
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) getWorkingSchedule(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	rows, err := s.Store.ListWorkingSchedule(c.Request().Context(), &store.FindWorkingSchedule{ChatID: &id})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load working schedule"))
	}
	return c.JSON(http.StatusOK, rows)
}

type holidayBody struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

func holidayYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, false
	}
	return year, true
}

func (s *Server) addHoliday(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	var body holidayBody
	if err := c.Bind(&body); err != nil || body.Date == "" {
		return handleError(c, apperror.Validation("date is required"))
	}
	year, ok := holidayYear(body.Date)
	if !ok || !validHolidayYear(year) {
		return handleError(c, apperror.Validation("date must fall within %d-%d", minHolidayYear, maxHolidayYear))
	}
	h, err := s.Store.CreateHoliday(c.Request().Context(), &store.CreateHoliday{ChatID: &id, Date: body.Date, Name: body.Name})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to create holiday"))
	}
	return c.JSON(http.StatusCreated, h)
}

func (s *Server) removeHoliday(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	date := c.Param("date")
	if err := s.Store.DeleteHoliday(c.Request().Context(), &store.DeleteHoliday{ChatID: &id, Date: date}); err != nil {
		return handleError(c, apperror.Wrap(err, "failed to delete holiday"))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getHolidays(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	find := &store.FindHoliday{ChatID: &id}
	if v := c.QueryParam("yearFrom"); v != "" {
		find.YearFrom, _ = strconv.Atoi(v)
	}
	if v := c.QueryParam("yearTo"); v != "" {
		find.YearTo, _ = strconv.Atoi(v)
	}
	list, err := s.Store.ListHolidays(c.Request().Context(), find)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to list holidays"))
	}
	return c.JSON(http.StatusOK, list)
}
