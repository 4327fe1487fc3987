package rpcapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/avito-tech/accountant-sla/internal/apperror"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/timer"
)

func (s *Server) registerSLARoutes(g *echo.Group) {
	g.POST("/sla/requests", s.createRequest, requireRole(roleManager))
	g.POST("/sla/classify", s.classifyMessage, requireRole(roleAuthed))
	g.POST("/sla/timers/start", s.startTimer, requireRole(roleManager))
	g.POST("/sla/timers/stop", s.stopTimer, requireRole(roleManager))
	g.GET("/sla/requests", s.getRequests, requireRole(roleAuthed))
	g.GET("/sla/requests/:id", s.getRequestByID, requireRole(roleAuthed))
	g.GET("/sla/timers/active", s.getActiveTimers, requireRole(roleAuthed))
}

type createRequestBody struct {
	ChatID           id64      `json:"chatId"`
	MessageID        id64      `json:"messageId"`
	Text             string    `json:"text"`
	Category         string    `json:"category"`
	Confidence       float64   `json:"confidence"`
	ClassifierModel  string    `json:"classifierModel"`
	ThresholdMinutes int       `json:"thresholdMinutes"`
	ReceivedAt       time.Time `json:"receivedAt"`
}

type requestView struct {
	ID                  id64     `json:"id"`
	UID                 string   `json:"uid"`
	ChatID              id64     `json:"chatId"`
	MessageID           id64     `json:"messageId"`
	Status              string   `json:"status"`
	Category            string   `json:"category"`
	Confidence          float64  `json:"confidence"`
	ThresholdMinutes    int      `json:"thresholdMinutes"`
	SlaBreached         bool     `json:"slaBreached"`
	ResponseTimeMinutes *float64 `json:"responseTimeMinutes,omitempty"`
}

func toRequestView(r *store.ClientRequest) requestView {
	return requestView{
		ID: id64(r.ID), UID: r.UID, ChatID: id64(r.ChatID), MessageID: id64(r.MessageID),
		Status: string(r.Status), Category: r.Category, Confidence: r.Confidence,
		ThresholdMinutes: r.ThresholdMinutes, SlaBreached: r.SlaBreached, ResponseTimeMinutes: r.ResponseTimeMinutes,
	}
}

func (s *Server) createRequest(c echo.Context) error {
	var body createRequestBody
	if err := c.Bind(&body); err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", "BAD_REQUEST")
	}
	if body.Text == "" || body.ThresholdMinutes <= 0 {
		return handleError(c, apperror.Validation("text and thresholdMinutes are required"))
	}
	receivedAt := body.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	req, err := s.Store.CreateClientRequest(c.Request().Context(), &store.CreateClientRequest{
		UID: shortuuid.New(), ChatID: int64(body.ChatID), MessageID: int64(body.MessageID),
		ReceivedAt: receivedAt, Category: body.Category, Confidence: body.Confidence,
		ClassifierModel: body.ClassifierModel, ThresholdMinutes: body.ThresholdMinutes,
	})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to create client request"))
	}
	if err := s.Timer.StartTimer(c.Request().Context(), req.ID, int64(body.ChatID), body.ThresholdMinutes, receivedAt); err != nil {
		return handleError(c, err)
	}
	s.Metrics.RecordRequestCreated(int64(body.ChatID))
	return c.JSON(http.StatusCreated, toRequestView(req))
}

type classifyMessageBody struct {
	Text string `json:"text"`
}

type classifyMessageResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
	Reasoning  string  `json:"reasoning"`
}

func (s *Server) classifyMessage(c echo.Context) error {
	var body classifyMessageBody
	if err := c.Bind(&body); err != nil || body.Text == "" {
		return handleError(c, apperror.Validation("text is required"))
	}
	result, err := s.Classify.Classify(c.Request().Context(), body.Text)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "classification failed"))
	}
	s.Metrics.RecordClassification(string(result.Category), result.Model)
	return c.JSON(http.StatusOK, classifyMessageResponse{
		Category: string(result.Category), Confidence: result.Confidence, Model: result.Model, Reasoning: result.Reasoning,
	})
}

type startTimerBody struct {
	RequestID        id64      `json:"requestId"`
	ChatID           id64      `json:"chatId"`
	ThresholdMinutes int       `json:"thresholdMinutes"`
	ReceivedAt       time.Time `json:"receivedAt"`
}

func (s *Server) startTimer(c echo.Context) error {
	var body startTimerBody
	if err := c.Bind(&body); err != nil || body.ThresholdMinutes <= 0 {
		return handleError(c, apperror.Validation("requestId, chatId and thresholdMinutes are required"))
	}
	receivedAt := body.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	if err := s.Timer.StartTimer(c.Request().Context(), int64(body.RequestID), int64(body.ChatID), body.ThresholdMinutes, receivedAt); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type stopTimerBody struct {
	RequestID         id64      `json:"requestId"`
	RespondedBy       id64      `json:"respondedBy"`
	ResponseMessageID id64      `json:"responseMessageId"`
	ResponseAt        time.Time `json:"responseAt"`
}

type stopTimerResponse struct {
	AlreadyStopped        bool    `json:"alreadyStopped"`
	ElapsedWorkingMinutes float64 `json:"elapsedWorkingMinutes"`
	Breached              bool    `json:"breached"`
}

func (s *Server) stopTimer(c echo.Context) error {
	var body stopTimerBody
	if err := c.Bind(&body); err != nil {
		return handleError(c, apperror.Validation("invalid request body"))
	}
	responseAt := body.ResponseAt
	if responseAt.IsZero() {
		responseAt = time.Now()
	}
	result, err := s.Timer.StopTimer(c.Request().Context(), timer.StopParams{
		RequestID: int64(body.RequestID), RespondedBy: int64(body.RespondedBy),
		ResponseMessageID: int64(body.ResponseMessageID), ResponseAt: responseAt,
	})
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, stopTimerResponse{
		AlreadyStopped: result.AlreadyStopped, ElapsedWorkingMinutes: result.ElapsedWorkingMinutes, Breached: result.Breached,
	})
}

func (s *Server) getRequests(c echo.Context) error {
	find := &store.FindClientRequest{}
	if chatID := c.QueryParam("chatId"); chatID != "" {
		v, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return handleError(c, apperror.Validation("invalid chatId"))
		}
		find.ChatID = &v
	}
	if status := c.QueryParam("status"); status != "" {
		rs := store.RequestStatus(status)
		find.Status = &rs
	}
	if c.QueryParam("openOnly") == "true" {
		find.OpenOnly = true
	}

	list, err := s.Store.ListClientRequests(c.Request().Context(), find)
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to list requests"))
	}
	views := make([]requestView, 0, len(list))
	for _, r := range list {
		views = append(views, toRequestView(r))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) getRequestByID(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, apperror.Validation("invalid id"))
	}
	req, err := s.Store.GetClientRequest(c.Request().Context(), &store.FindClientRequest{ID: &id})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load request"))
	}
	if req == nil {
		return handleError(c, apperror.NotFound("request %d not found", id))
	}
	return c.JSON(http.StatusOK, toRequestView(req))
}

type activeTimerView struct {
	RequestID             id64     `json:"requestId"`
	ElapsedWorkingMinutes float64  `json:"elapsedWorkingMinutes"`
	RemainingMinutes      float64  `json:"remainingMinutes"`
	ThresholdMinutes      int      `json:"thresholdMinutes"`
	Breached              bool     `json:"breached"`
}

func (s *Server) getActiveTimers(c echo.Context) error {
	ctx := c.Request().Context()
	pending := store.RequestStatusPending
	list, err := s.Store.ListClientRequests(ctx, &store.FindClientRequest{Status: &pending})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to list pending requests"))
	}
	views := make([]activeTimerView, 0, len(list))
	for _, r := range list {
		if r.SlaTimerStartedAt == nil {
			continue
		}
		status, err := s.Timer.GetSlaStatus(ctx, r.ID)
		if err != nil {
			continue
		}
		views = append(views, activeTimerView{
			RequestID: id64(r.ID), ElapsedWorkingMinutes: status.ElapsedWorkingMinutes,
			RemainingMinutes: status.RemainingMinutes, ThresholdMinutes: status.ThresholdMinutes, Breached: status.Breached,
		})
	}
	return c.JSON(http.StatusOK, views)
}
