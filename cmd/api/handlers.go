package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stockroom/batch-service/internal/application"
	"github.com/stockroom/batch-service/internal/domain"
	"github.com/stockroom/batch-service/pkg/errors"
	"github.com/stockroom/batch-service/pkg/logging"
	"github.com/stockroom/batch-service/pkg/middleware"
)

type handlers struct {
	allocator *application.BatchAllocator
	sorter    *application.WarehouseSorter
	health    *application.HealthEvaluator
	guard     *application.CapacityGuard
	audits    domain.AuditRepository
	logger    *logging.Logger
}

func (h *handlers) createBatch(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var cmd application.CreateBatchCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		responder.RespondWithAppError(errors.ErrBadRequest("invalid request body").Wrap(err))
		return
	}

	batch, err := h.allocator.Create(c.Request.Context(), cmd, middleware.GetActorID(c))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusCreated, batch)
}

func (h *handlers) getBatch(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	batch, err := h.allocator.GetBatch(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *handlers) listBatches(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	filter := domain.BatchFilter{
		ProductID: c.Query("productId"),
		Shelf:     c.Query("shelf"),
	}
	page := domain.Pagination{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", domain.DefaultPageSize),
	}

	batches, total, err := h.allocator.ListBatches(c.Request.Context(), filter, page)
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	if batches == nil {
		batches = []*domain.Batch{}
	}

	c.JSON(http.StatusOK, gin.H{
		"batches":  batches,
		"total":    total,
		"page":     page.Normalize().Page,
		"pageSize": page.Normalize().PageSize,
	})
}

func (h *handlers) updateBatch(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var cmd application.UpdateBatchCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		responder.RespondWithAppError(errors.ErrBadRequest("invalid request body").Wrap(err))
		return
	}

	batch, err := h.allocator.Update(c.Request.Context(), c.Param("batchId"), cmd, middleware.GetActorID(c))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *handlers) removeBatch(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	if err := h.allocator.Remove(c.Request.Context(), c.Param("batchId"), middleware.GetActorID(c)); err != nil {
		responder.RespondWithError(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handlers) sortWarehouse(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	report, err := h.sorter.SortWarehouse(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *handlers) shelfLoad(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	shelf, err := domain.ParseShelfAddress(c.Param("shelf"))
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	load, err := h.guard.ShelfLoad(c.Request.Context(), shelf)
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shelf":          shelf.String(),
		"currentWeight":  load,
		"maxShelfWeight": application.MaxShelfWeight,
	})
}

func (h *handlers) runHealthCheck(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	productID := c.Param("productId")
	if err := h.health.Run(c.Request.Context(), productID); err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"productId": productID, "status": "evaluated"})
}

func (h *handlers) listAudit(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	page := domain.Pagination{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", domain.DefaultPageSize),
	}

	entries, total, err := h.audits.List(c.Request.Context(), page.Normalize())
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	if entries == nil {
		entries = []*domain.AuditEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
	})
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}
