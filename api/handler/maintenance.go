package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/adms/sessiond/api/transport"
	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/internal/services/maintenance"
	"github.com/adms/sessiond/pkg/httpcontext"
)

type MaintenanceHandler struct {
	baseHandler
	manager *maintenance.Manager
}

func NewMaintenanceHandler(manager *maintenance.Manager, adapter *httpcontext.Adapter, logger *zap.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		baseHandler: newBaseHandler(adapter, logger),
		manager:     manager,
	}
}

// @Summary Current maintenance state
// @Tags maintenance
// @Router /api/v1/maintenance [get]
func (h *MaintenanceHandler) Get(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.manager.State())
}

// @Summary Toggle the maintenance window
// @Tags maintenance
// @Router /api/v1/maintenance [put]
func (h *MaintenanceHandler) Put(ctx *fasthttp.RequestCtx) {
	var req transport.MaintenanceRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state := domain.MaintenanceState{
		Active:    req.Active,
		Message:   req.Message,
		Until:     req.Until,
		UpdatedBy: req.UpdatedBy,
	}
	if err := h.manager.Set(stdCtx, state); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.manager.State())
}
