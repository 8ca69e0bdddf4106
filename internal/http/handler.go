package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/repository"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/service"
)

type Handler struct {
	records    *service.RecordService
	moduleRows *service.ModuleRowService
	firewall   *service.FirewallService
}

func NewHandler(services Services) *Handler {
	return &Handler{
		records:    services.Records,
		moduleRows: services.ModuleRows,
		firewall:   services.Firewall,
	}
}

type editServiceRequest struct {
	Vars      models.ServiceVars `json:"vars"`
	UseModule *bool              `json:"use_module"`
}

type lifecycleRequest struct {
	UseModule *bool `json:"use_module"`
}

type unblockRequest struct {
	IPAddress string `json:"ip_address"`
}

// ==================== Server Rows ====================

func (h *Handler) ListModuleRows(c *gin.Context) {
	rows, err := h.moduleRows.ListModuleRows(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (h *Handler) AddModuleRow(c *gin.Context) {
	var req service.ModuleRowInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, fields, err := h.moduleRows.AddModuleRow(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"row": row, "meta": fields})
}

func (h *Handler) GetModuleRow(c *gin.Context) {
	id, ok := rowID(c)
	if !ok {
		return
	}

	row, err := h.moduleRows.GetModuleRow(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *Handler) EditModuleRow(c *gin.Context) {
	id, ok := rowID(c)
	if !ok {
		return
	}

	var req service.ModuleRowInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, fields, err := h.moduleRows.EditModuleRow(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"row": row, "meta": fields})
}

func (h *Handler) DeleteModuleRow(c *gin.Context) {
	id, ok := rowID(c)
	if !ok {
		return
	}

	if err := h.moduleRows.DeleteModuleRow(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetModuleRowLogs browses the audit log of a server row
func (h *Handler) GetModuleRowLogs(c *gin.Context) {
	id, ok := rowID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.moduleRows.Logs(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// ==================== Packages ====================

func (h *Handler) ValidatePackage(c *gin.Context) {
	var req models.PackageMeta
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields, err := service.ValidatePackage(req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meta": fields})
}

// ==================== Services ====================

func (h *Handler) AddService(c *gin.Context) {
	var req service.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.records.Create(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, svc)
}

func (h *Handler) GetService(c *gin.Context) {
	svc, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": svc, "name": svc.Name()})
}

func (h *Handler) EditService(c *gin.Context) {
	var req editServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.records.Edit(c.Request.Context(), c.Param("id"), req.Vars, useModule(req.UseModule))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (h *Handler) SuspendService(c *gin.Context) {
	h.lifecycle(c, h.records.Suspend)
}

func (h *Handler) UnsuspendService(c *gin.Context) {
	h.lifecycle(c, h.records.Unsuspend)
}

func (h *Handler) CancelService(c *gin.Context) {
	h.lifecycle(c, h.records.Cancel)
}

func (h *Handler) ChangeServicePackage(c *gin.Context) {
	h.lifecycle(c, h.records.ChangePackage)
}

func (h *Handler) lifecycle(c *gin.Context, apply func(ctx context.Context, id string, useModule bool) (*models.Service, error)) {
	var req lifecycleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	svc, err := apply(c.Request.Context(), c.Param("id"), useModule(req.UseModule))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

// ==================== Firewall ====================

// GetFirewall reports the address the caller is seen from
func (h *Handler) GetFirewall(c *gin.Context) {
	if _, err := h.records.Get(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_ip": c.ClientIP()})
}

func (h *Handler) UnblockIP(c *gin.Context) {
	svc, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.unblock(c, svc)
}

// GetMyFirewall is the client area firewall tab
func (h *Handler) GetMyFirewall(c *gin.Context) {
	if _, ok := h.ownedService(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_ip": c.ClientIP()})
}

func (h *Handler) UnblockMyIP(c *gin.Context) {
	svc, ok := h.ownedService(c)
	if !ok {
		return
	}
	h.unblock(c, svc)
}

func (h *Handler) unblock(c *gin.Context, svc *models.Service) {
	var req unblockRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}

	if err := h.firewall.UnblockIP(c.Request.Context(), svc.ModuleRowID, req.IPAddress); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ip_address": req.IPAddress, "client_ip": c.ClientIP()})
}

// ownedService loads the service of the path and checks it belongs to the
// token's client. Services of other clients look like missing ones.
func (h *Handler) ownedService(c *gin.Context) (*models.Service, bool) {
	svc, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if svc.ClientID != c.GetString("userID") {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return nil, false
	}
	return svc, true
}

// ==================== Helpers ====================

func rowID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid row id"})
		return 0, false
	}
	return id, true
}

// useModule defaults to provisioning on the panel
func useModule(v *bool) bool {
	return v == nil || *v
}

// writeError maps service errors onto status codes
func writeError(c *gin.Context, err error) {
	var se *service.Error
	if errors.As(err, &se) {
		status := http.StatusInternalServerError
		switch se.Kind {
		case service.KindValidation:
			status = http.StatusBadRequest
		case service.KindMissingServer:
			status = http.StatusNotFound
		case service.KindGenerationExhausted:
			status = http.StatusConflict
		case service.KindTransport, service.KindRemoteRejection:
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": se.Error(), "kind": se.Kind, "errors": se.Fields})
		return
	}

	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	log.Printf("[Handler] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
