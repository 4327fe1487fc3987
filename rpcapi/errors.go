package rpcapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avito-tech/accountant-sla/internal/apperror"
)

// errorBody is the stable JSON shape returned for every rejected request,
// RPC or webhook alike.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

func writeError(c echo.Context, status int, label, code string) error {
	return c.JSON(status, errorBody{Error: label, Code: code, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// handleError maps a domain error (classified via apperror) onto the
// RPC boundary's HTTP status convention; unclassified errors default to
// transient/500 so handlers never leak a stack trace to the client.
func handleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return writeError(c, http.StatusBadRequest, "Bad Request", "BAD_REQUEST")
	case apperror.KindConflict:
		return writeError(c, http.StatusConflict, "Conflict", "CONFLICT")
	case apperror.KindNotFound:
		return writeError(c, http.StatusNotFound, "Not Found", "NOT_FOUND")
	case apperror.KindFatal:
		return writeError(c, http.StatusInternalServerError, "Internal Server Error", "FATAL")
	default:
		return writeError(c, http.StatusInternalServerError, "Internal Server Error", "TRANSIENT")
	}
}
