package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sage/internal/domain/schema"
	"sage/internal/infrastructure/http/v1/dto"
)

// FieldService manages fields and their validation rules.
type FieldService interface {
	Fields(ctx context.Context, productID int64) ([]*schema.Field, error)
	GetField(ctx context.Context, productID, fieldID int64) (*schema.Field, error)
	CreateField(ctx context.Context, f *schema.Field) error
	UpdateField(ctx context.Context, f *schema.Field) error
	DeleteField(ctx context.Context, productID, fieldID int64) error

	CreateRule(ctx context.Context, productID int64, r *schema.ValidationRule) error
	GetRule(ctx context.Context, productID, fieldID, ruleID int64) (*schema.ValidationRule, error)
	UpdateRule(ctx context.Context, productID int64, r *schema.ValidationRule) error
	DeleteRule(ctx context.Context, productID, fieldID, ruleID int64) error
}

// FieldHandler handles field and rule endpoints nested under a product.
type FieldHandler struct {
	*BaseHandler
	fields FieldService
}

// NewFieldHandler creates a new field handler.
func NewFieldHandler(fields FieldService) *FieldHandler {
	return &FieldHandler{BaseHandler: NewBaseHandler(), fields: fields}
}

// List handles GET /products/:id/fields
func (h *FieldHandler) List(c *gin.Context) {
	pid, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	fields, err := h.fields.Fields(c.Request.Context(), pid)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, fields)
}

// Create handles POST /products/:id/fields
func (h *FieldHandler) Create(c *gin.Context) {
	pid, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.FieldRequest
	if !h.BindJSON(c, &req) {
		return
	}
	f := req.ToEntity(pid)
	if err := h.fields.CreateField(c.Request.Context(), f); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, f)
}

// Get handles GET /products/:id/fields/:fieldId
func (h *FieldHandler) Get(c *gin.Context) {
	pid, fid, ok := h.fieldPath(c)
	if !ok {
		return
	}
	f, err := h.fields.GetField(c.Request.Context(), pid, fid)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, f)
}

// Update handles PUT /products/:id/fields/:fieldId
func (h *FieldHandler) Update(c *gin.Context) {
	pid, fid, ok := h.fieldPath(c)
	if !ok {
		return
	}
	var req dto.FieldRequest
	if !h.BindJSON(c, &req) {
		return
	}
	f := req.ToEntity(pid)
	f.ID = fid
	if err := h.fields.UpdateField(c.Request.Context(), f); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, f)
}

// Delete handles DELETE /products/:id/fields/:fieldId
func (h *FieldHandler) Delete(c *gin.Context) {
	pid, fid, ok := h.fieldPath(c)
	if !ok {
		return
	}
	if err := h.fields.DeleteField(c.Request.Context(), pid, fid); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// CreateRule handles POST /products/:id/fields/:fieldId/rules
func (h *FieldHandler) CreateRule(c *gin.Context) {
	pid, fid, ok := h.fieldPath(c)
	if !ok {
		return
	}
	var req dto.RuleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	r := req.ToEntity(fid)
	if err := h.fields.CreateRule(c.Request.Context(), pid, r); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, r)
}

// GetRule handles GET /products/:id/fields/:fieldId/rules/:ruleId
func (h *FieldHandler) GetRule(c *gin.Context) {
	pid, fid, rid, ok := h.rulePath(c)
	if !ok {
		return
	}
	r, err := h.fields.GetRule(c.Request.Context(), pid, fid, rid)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// UpdateRule handles PUT /products/:id/fields/:fieldId/rules/:ruleId
func (h *FieldHandler) UpdateRule(c *gin.Context) {
	pid, fid, rid, ok := h.rulePath(c)
	if !ok {
		return
	}
	var req dto.RuleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	r := req.ToEntity(fid)
	r.ID = rid
	if err := h.fields.UpdateRule(c.Request.Context(), pid, r); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// DeleteRule handles DELETE /products/:id/fields/:fieldId/rules/:ruleId
func (h *FieldHandler) DeleteRule(c *gin.Context) {
	pid, fid, rid, ok := h.rulePath(c)
	if !ok {
		return
	}
	if err := h.fields.DeleteRule(c.Request.Context(), pid, fid, rid); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

func (h *FieldHandler) fieldPath(c *gin.Context) (int64, int64, bool) {
	pid, ok := h.ParamID(c, "id")
	if !ok {
		return 0, 0, false
	}
	fid, ok := h.ParamID(c, "fieldId")
	return pid, fid, ok
}

func (h *FieldHandler) rulePath(c *gin.Context) (int64, int64, int64, bool) {
	pid, fid, ok := h.fieldPath(c)
	if !ok {
		return 0, 0, 0, false
	}
	rid, ok := h.ParamID(c, "ruleId")
	return pid, fid, rid, ok
}
