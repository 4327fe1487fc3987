package rpcapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avito-tech/accountant-sla/internal/apperror"
	"github.com/avito-tech/accountant-sla/store"
)

func (s *Server) registerAnalyticsRoutes(g *echo.Group) {
	g.GET("/analytics/dashboard", s.getDashboard, requireRole(roleManager))
	g.GET("/analytics/accountants", s.getAccountantStats, requireRole(roleManager))
	g.GET("/analytics/sla-compliance", s.getSLACompliance, requireRole(roleManager))
	g.GET("/analytics/response-time", s.getResponseTime, requireRole(roleManager))
	g.GET("/analytics/export", s.exportReport, requireRole(roleAdmin))
}

type dashboardResponse struct {
	TotalRequests   int `json:"totalRequests"`
	OpenRequests    int `json:"openRequests"`
	BreachedTotal   int `json:"breachedTotal"`
	ActiveAlerts    int `json:"activeAlerts"`
	AnsweredOnTime  int `json:"answeredOnTime"`
}

func (s *Server) getDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	all, err := s.Store.ListClientRequests(ctx, &store.FindClientRequest{})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load requests"))
	}
	resp := dashboardResponse{TotalRequests: len(all)}
	for _, r := range all {
		if r.Status != store.RequestStatusAnswered && r.Status != store.RequestStatusClosed {
			resp.OpenRequests++
		}
		if r.SlaBreached {
			resp.BreachedTotal++
		}
		if r.Status == store.RequestStatusAnswered && !r.SlaBreached {
			resp.AnsweredOnTime++
		}
	}
	active, err := s.Store.ListSlaAlerts(ctx, &store.FindSlaAlert{UnresolvedOnly: true})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load active alerts"))
	}
	resp.ActiveAlerts = len(active)
	return c.JSON(http.StatusOK, resp)
}

type accountantStat struct {
	AccountantID        id64    `json:"accountantId"`
	RequestsHandled     int     `json:"requestsHandled"`
	Breaches            int     `json:"breaches"`
	AvgResponseMinutes  float64 `json:"avgResponseMinutes"`
}

func (s *Server) getAccountantStats(c echo.Context) error {
	list, err := s.Store.ListClientRequests(c.Request().Context(), &store.FindClientRequest{})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load requests"))
	}
	byAccountant := map[int64]*accountantStat{}
	totals := map[int64]float64{}
	counts := map[int64]int{}
	for _, r := range list {
		if r.RespondedBy == nil {
			continue
		}
		id := *r.RespondedBy
		stat, ok := byAccountant[id]
		if !ok {
			stat = &accountantStat{AccountantID: id64(id)}
			byAccountant[id] = stat
		}
		stat.RequestsHandled++
		if r.SlaBreached {
			stat.Breaches++
		}
		if r.ResponseTimeMinutes != nil {
			totals[id] += *r.ResponseTimeMinutes
			counts[id]++
		}
	}
	stats := make([]accountantStat, 0, len(byAccountant))
	for id, stat := range byAccountant {
		if counts[id] > 0 {
			stat.AvgResponseMinutes = totals[id] / float64(counts[id])
		}
		stats = append(stats, *stat)
	}
	return c.JSON(http.StatusOK, stats)
}

type slaComplianceResponse struct {
	Total      int     `json:"total"`
	WithinSLA  int     `json:"withinSla"`
	Breached   int     `json:"breached"`
	Compliance float64 `json:"compliancePercent"`
}

func (s *Server) getSLACompliance(c echo.Context) error {
	list, err := s.Store.ListClientRequests(c.Request().Context(), &store.FindClientRequest{})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load requests"))
	}
	resp := slaComplianceResponse{}
	for _, r := range list {
		if r.Status != store.RequestStatusAnswered {
			continue
		}
		resp.Total++
		if r.SlaBreached {
			resp.Breached++
		} else {
			resp.WithinSLA++
		}
	}
	if resp.Total > 0 {
		resp.Compliance = float64(resp.WithinSLA) / float64(resp.Total) * 100
	}
	return c.JSON(http.StatusOK, resp)
}

type responseTimeResponse struct {
	Count             int     `json:"count"`
	AvgMinutes        float64 `json:"avgMinutes"`
	MaxMinutes        float64 `json:"maxMinutes"`
}

func (s *Server) getResponseTime(c echo.Context) error {
	list, err := s.Store.ListClientRequests(c.Request().Context(), &store.FindClientRequest{})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load requests"))
	}
	resp := responseTimeResponse{}
	var sum float64
	for _, r := range list {
		if r.ResponseTimeMinutes == nil {
			continue
		}
		resp.Count++
		sum += *r.ResponseTimeMinutes
		if *r.ResponseTimeMinutes > resp.MaxMinutes {
			resp.MaxMinutes = *r.ResponseTimeMinutes
		}
	}
	if resp.Count > 0 {
		resp.AvgMinutes = sum / float64(resp.Count)
	}
	return c.JSON(http.StatusOK, resp)
}

// exportReport renders a flat CSV of every request for offline analysis;
// it is the one report-shaped procedure among otherwise JSON endpoints.
func (s *Server) exportReport(c echo.Context) error {
	list, err := s.Store.ListClientRequests(c.Request().Context(), &store.FindClientRequest{})
	if err != nil {
		return handleError(c, apperror.Wrap(err, "failed to load requests"))
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().WriteHeader(http.StatusOK)
	w := c.Response()
	_, _ = w.Write([]byte("id,uid,chatId,status,category,thresholdMinutes,slaBreached,responseTimeMinutes,receivedAt\n"))
	for _, r := range list {
		responseTime := ""
		if r.ResponseTimeMinutes != nil {
			responseTime = strconv.FormatFloat(*r.ResponseTimeMinutes, 'f', 1, 64)
		}
		line := strconv.FormatInt(r.ID, 10) + "," + r.UID + "," + strconv.FormatInt(r.ChatID, 10) + "," +
			string(r.Status) + "," + r.Category + "," + strconv.Itoa(r.ThresholdMinutes) + "," +
			strconv.FormatBool(r.SlaBreached) + "," + responseTime + "," + r.ReceivedAt.Format(time.RFC3339) + "\n"
		_, _ = w.Write([]byte(line))
	}
	return nil
}
