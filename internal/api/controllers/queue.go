package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/scribeq/scribeq/internal/app"
	"github.com/scribeq/scribeq/internal/domain"
)

type QueueController struct {
	App *app.Context
}

// List returns every queue item plus derived stats
func (ctrl *QueueController) List(c *echo.Context) error {
	items := ctrl.App.Queue.Items()
	if items == nil {
		// Serialize an empty list, not null
		items = []domain.Item{}
	}
	return c.JSON(http.StatusOK, QueueResponse{
		Items:        items,
		Stats:        ctrl.App.Queue.Stats(),
		IsProcessing: ctrl.App.Queue.IsProcessing(),
	})
}

// Enqueue adds one item per submitted source
func (ctrl *QueueController) Enqueue(c *echo.Context) error {
	var req EnqueueRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	items, err := ctrl.App.Queue.Enqueue(req.Sources, req.Names)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, EnqueueResponse{Items: items})
}

// Get returns a single queue item by id
func (ctrl *QueueController) Get(c *echo.Context) error {
	item, ok := ctrl.App.Queue.Item(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "queue item not found"})
	}
	return c.JSON(http.StatusOK, item)
}

// Delete cancels and removes an item. Unknown ids are fine: the caller
// wanted it gone and it is.
func (ctrl *QueueController) Delete(c *echo.Context) error {
	ctrl.App.Queue.Remove(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// RetryFailed requeues every failed item behind the current tail
func (ctrl *QueueController) RetryFailed(c *echo.Context) error {
	return c.JSON(http.StatusOK, CountResponse{Count: ctrl.App.Queue.RetryFailed()})
}

// CancelAll aborts the active item and drops everything pending
func (ctrl *QueueController) CancelAll(c *echo.Context) error {
	return c.JSON(http.StatusOK, CountResponse{Count: ctrl.App.Queue.CancelAll()})
}

// Clear removes finished items; ?scope=all empties the whole queue
func (ctrl *QueueController) Clear(c *echo.Context) error {
	switch c.QueryParam("scope") {
	case "", "completed":
		if err := ctrl.App.Queue.ClearCompleted(); err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
	case "all":
		if err := ctrl.App.Queue.ClearAll(); err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "scope must be \"completed\" or \"all\""})
	}
	return c.NoContent(http.StatusNoContent)
}
