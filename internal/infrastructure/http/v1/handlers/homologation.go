package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sage/internal/core/apperror"
	"sage/internal/domain"
	"sage/internal/domain/homologation"
	"sage/internal/domain/schema"
	"sage/internal/infrastructure/http/v1/dto"
	"sage/internal/infrastructure/spreadsheet"
)

// HomologationService links products to the official catalog.
type HomologationService interface {
	PendingProducts(ctx context.Context, f domain.ListFilter) (domain.ListResult[*schema.Product], error)
	AllPendingProducts(ctx context.Context) ([]*schema.Product, error)

	ListItems(ctx context.Context, f homologation.ItemFilter) (domain.ListResult[*homologation.OfficialItem], error)
	CreateItem(ctx context.Context, o *homologation.OfficialItem) error
	ImportItems(ctx context.Context, headers []string, rows [][]string) ([]*homologation.OfficialItem, error)

	List(ctx context.Context, f homologation.Filter) (domain.ListResult[*homologation.Homologation], error)
	Homologate(ctx context.Context, productID, itemID int64) (*homologation.Homologation, bool, error)
	Review(ctx context.Context, id int64, in homologation.ReviewInput) (*homologation.Homologation, error)
	ImportLinks(ctx context.Context, headers []string, rows [][]string) (int, []string, error)

	FindMatches(ctx context.Context, productID int64) ([]homologation.Match, error)
	AutoMatch(ctx context.Context) ([]homologation.MatchReport, error)

	Config(ctx context.Context) (*homologation.Config, error)
	SaveConfig(ctx context.Context, in *homologation.Config) (*homologation.Config, error)
	Flags(ctx context.Context) (*homologation.Flags, error)
	SaveFlags(ctx context.Context, f homologation.Flags) (*homologation.Config, error)

	SendReportIfDue(ctx context.Context) (bool, error)
	Dashboard(ctx context.Context) (*homologation.Dashboard, error)
}

// HomologationHandler handles the /homologation endpoints.
type HomologationHandler struct {
	*BaseHandler
	svc HomologationService
}

// NewHomologationHandler creates a new homologation handler.
func NewHomologationHandler(svc HomologationService) *HomologationHandler {
	return &HomologationHandler{BaseHandler: NewBaseHandler(), svc: svc}
}

// --- Official items ---

// ListItems handles GET /homologation/items
func (h *HomologationHandler) ListItems(c *gin.Context) {
	var q dto.ItemQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.svc.ListItems(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// CreateItem handles POST /homologation/items
func (h *HomologationHandler) CreateItem(c *gin.Context) {
	var req dto.ItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	o := req.ToEntity()
	if err := h.svc.CreateItem(c.Request.Context(), o); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, o)
}

// ImportItems handles POST /homologation/items/upload
func (h *HomologationHandler) ImportItems(c *gin.Context) {
	headers, rows, ok := h.readSheet(c)
	if !ok {
		return
	}
	added, err := h.svc.ImportItems(c.Request.Context(), headers, rows)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, gin.H{"message": "File processed successfully", "created": len(added), "items": added})
}

// ItemTemplate handles GET /homologation/items/template
func (h *HomologationHandler) ItemTemplate(c *gin.Context) {
	h.Spreadsheet(c, "official_catalog_template.xlsx", func(w io.Writer) error {
		return spreadsheet.WriteHeaders(w, "Official Catalog", homologation.ItemHeaders)
	})
}

// --- Pending products ---

// PendingProducts handles GET /homologation/pending-products
func (h *HomologationHandler) PendingProducts(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.svc.PendingProducts(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// ExportPending handles GET /homologation/pending-products/export
func (h *HomologationHandler) ExportPending(c *gin.Context) {
	products, err := h.svc.AllPendingProducts(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Spreadsheet(c, "pending_products.xlsx", func(w io.Writer) error {
		return spreadsheet.WriteProducts(w, "Pending Products", products)
	})
}

// --- Homologations ---

// List handles GET /homologation
func (h *HomologationHandler) List(c *gin.Context) {
	var q dto.HomologationQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.svc.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Homologate handles POST /homologation
func (h *HomologationHandler) Homologate(c *gin.Context) {
	var req dto.HomologateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	out, created, err := h.svc.Homologate(c.Request.Context(), req.ProductID, req.OfficialItemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if created {
		h.Created(c, out)
		return
	}
	h.OK(c, out)
}

// Review handles PATCH /homologation/:id
func (h *HomologationHandler) Review(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	out, err := h.svc.Review(c.Request.Context(), id, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, out)
}

// ImportLinks handles POST /homologation/links/upload
func (h *HomologationHandler) ImportLinks(c *gin.Context) {
	headers, rows, ok := h.readSheet(c)
	if !ok {
		return
	}
	n, errs, err := h.svc.ImportLinks(c.Request.Context(), headers, rows)
	if err != nil {
		h.Error(c, err)
		return
	}
	if errs == nil {
		errs = []string{}
	}
	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusMultiStatus
	}
	h.Respond(c, status, dto.ImportLinksResponse{Approved: n, Errors: errs})
}

// LinkTemplate handles GET /homologation/links/template
func (h *HomologationHandler) LinkTemplate(c *gin.Context) {
	h.Spreadsheet(c, "homologation_template.xlsx", func(w io.Writer) error {
		return spreadsheet.WriteHeaders(w, "Homologation", homologation.LinkHeaders)
	})
}

// --- Matching ---

// Matches handles GET /homologation/products/:productId/matches
func (h *HomologationHandler) Matches(c *gin.Context) {
	pid, ok := h.ParamID(c, "productId")
	if !ok {
		return
	}
	matches, err := h.svc.FindMatches(c.Request.Context(), pid)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"product_id": pid, "matches": matches})
}

// AutoMatch handles POST /homologation/auto-match
func (h *HomologationHandler) AutoMatch(c *gin.Context) {
	reports, err := h.svc.AutoMatch(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"matched": len(reports), "results": reports})
}

// --- Configuration ---

// Config handles GET /homologation/config
func (h *HomologationHandler) Config(c *gin.Context) {
	cfg, err := h.svc.Config(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewConfigResponse(cfg))
}

// SaveConfig handles PUT /homologation/config
func (h *HomologationHandler) SaveConfig(c *gin.Context) {
	var req homologation.Config
	if !h.BindJSON(c, &req) {
		return
	}
	cfg, err := h.svc.SaveConfig(c.Request.Context(), &req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewConfigResponse(cfg))
}

// Flags handles GET /homologation/config/flags
func (h *HomologationHandler) Flags(c *gin.Context) {
	f, err := h.svc.Flags(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, f)
}

// SaveFlags handles PUT /homologation/config/flags
func (h *HomologationHandler) SaveFlags(c *gin.Context) {
	var req homologation.Flags
	if !h.BindJSON(c, &req) {
		return
	}
	cfg, err := h.svc.SaveFlags(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cfg.Flags)
}

// --- Reporting ---

// Dashboard handles GET /homologation/dashboard
func (h *HomologationHandler) Dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// SendReport handles POST /homologation/report. Nothing is sent before the
// configured period elapses.
func (h *HomologationHandler) SendReport(c *gin.Context) {
	sent, err := h.svc.SendReportIfDue(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"sent": sent})
}

func (h *HomologationHandler) readSheet(c *gin.Context) ([]string, [][]string, bool) {
	_, data, ok := h.UploadedFile(c)
	if !ok {
		return nil, nil, false
	}
	headers, rows, err := spreadsheet.ReadTable(bytes.NewReader(data))
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("cannot read spreadsheet").WithCause(err))
		return nil, nil, false
	}
	return headers, rows, true
}
