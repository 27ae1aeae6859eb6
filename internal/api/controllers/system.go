package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/scribeq/scribeq/internal/app"
)

type SystemController struct {
	App *app.Context
}

func (ctrl *SystemController) Health(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// PurgeCache deletes every cached download and reports how many entries
// were dropped
func (ctrl *SystemController) PurgeCache(c *echo.Context) error {
	count := ctrl.App.Cache.Len()
	if err := ctrl.App.Cache.PurgeAll(); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, CountResponse{Count: count})
}
