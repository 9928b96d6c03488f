package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/j-veylop/cf-usage-dashboard/internal/cloudflare"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/progressive"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/settings"
)

// Response is the envelope of every JSON endpoint.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response[any]{Success: true, Data: data})
}

func badRequest(c *gin.Context, code string, err error) {
	c.JSON(http.StatusBadRequest, Response[any]{Error: err.Error(), Code: code})
}

// fail maps service errors onto status codes.
func fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"

	switch {
	case errors.Is(err, settings.ErrNotConfigured):
		status, code = http.StatusPreconditionFailed, "not_configured"
	case errors.Is(err, progressive.ErrNoAccounts):
		status, code = http.StatusPreconditionFailed, "no_accounts"
	case errors.Is(err, alerts.ErrNoWebhook):
		status, code = http.StatusBadRequest, "no_webhook"
	case errors.Is(err, cloudflare.ErrUnauthorized):
		status, code = http.StatusBadGateway, "unauthorized"
	case errors.Is(err, progressive.ErrAllAccountsFailed):
		status, code = http.StatusBadGateway, "upstream_failed"
	}

	c.JSON(status, Response[any]{Error: err.Error(), Code: code})
}
