package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sage/internal/core/apperror"
	"sage/internal/domain"
	"sage/internal/domain/catalog"
	"sage/internal/domain/schema"
	"sage/internal/infrastructure/http/v1/dto"
	"sage/internal/infrastructure/spreadsheet"
)

// CatalogService manages catalogs.
type CatalogService interface {
	Create(ctx context.Context, c *catalog.Catalog, withAPIKey bool) (*catalog.Created, error)
	Get(ctx context.Context, id int64) (*catalog.Catalog, error)
	Update(ctx context.Context, c *catalog.Catalog) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f catalog.Filter) (domain.ListResult[*catalog.Catalog], error)
	RotateAPIKey(ctx context.Context, id int64) (string, error)
	Summary(ctx context.Context) (*catalog.StatusSummary, error)
}

// DefinitionImporter loads field definitions from spreadsheets.
type DefinitionImporter interface {
	GetProduct(ctx context.Context, id int64) (*schema.Product, error)
	ImportFields(ctx context.Context, productID int64, rows [][]string) (*schema.ImportResult, error)
	RecordUpload(ctx context.Context, f *schema.UploadedFile) error
	Uploads(ctx context.Context, catalogID int64) ([]*schema.UploadedFile, error)
}

// exportPageSize bounds one page read while exporting.
const exportPageSize = 500

// CatalogHandler handles catalog endpoints.
type CatalogHandler struct {
	*BaseHandler
	catalogs    CatalogService
	definitions DefinitionImporter
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalogs CatalogService, definitions DefinitionImporter) *CatalogHandler {
	return &CatalogHandler{BaseHandler: NewBaseHandler(), catalogs: catalogs, definitions: definitions}
}

// List handles GET /catalogs
func (h *CatalogHandler) List(c *gin.Context) {
	var q dto.CatalogQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.catalogs.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Create handles POST /catalogs. The product table is created with it.
func (h *CatalogHandler) Create(c *gin.Context) {
	var req dto.CatalogRequest
	if !h.BindJSON(c, &req) {
		return
	}
	out, err := h.catalogs.Create(c.Request.Context(), req.ToEntity(), req.WithAPIKey)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, out)
}

// Get handles GET /catalogs/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	cat, err := h.catalogs.Get(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cat)
}

// Update handles PUT /catalogs/:id
func (h *CatalogHandler) Update(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.CatalogRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cat := req.ToEntity()
	cat.ID = id
	if err := h.catalogs.Update(c.Request.Context(), cat); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cat)
}

// Delete handles DELETE /catalogs/:id
func (h *CatalogHandler) Delete(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogs.Delete(c.Request.Context(), id); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// RotateAPIKey handles POST /catalogs/:id/api-key
func (h *CatalogHandler) RotateAPIKey(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	key, err := h.catalogs.RotateAPIKey(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.APIKeyResponse{CatalogID: id, APIKey: key})
}

// Summary handles GET /catalogs/summary
func (h *CatalogHandler) Summary(c *gin.Context) {
	s, err := h.catalogs.Summary(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// ExportPending handles GET /catalogs/pending/export
func (h *CatalogHandler) ExportPending(c *gin.Context) {
	ctx := c.Request.Context()
	f := catalog.Filter{ListFilter: domain.ListFilter{OrderBy: "id", Limit: exportPageSize}, Status: catalog.StatusPending}
	var all []*catalog.Catalog
	for {
		page, err := h.catalogs.List(ctx, f)
		if err != nil {
			h.Error(c, err)
			return
		}
		all = append(all, page.Items...)
		if len(page.Items) < f.Limit {
			break
		}
		f.Offset += f.Limit
	}
	h.Spreadsheet(c, "pending_catalogs.xlsx", func(w io.Writer) error {
		return spreadsheet.WriteCatalogs(w, "Pending Catalogs", all)
	})
}

// DefinitionTemplate handles GET /catalogs/fields/template
func (h *CatalogHandler) DefinitionTemplate(c *gin.Context) {
	h.Spreadsheet(c, "field_definitions_template.xlsx", func(w io.Writer) error {
		return spreadsheet.WriteHeaders(w, "Fields", schema.DefinitionHeaders)
	})
}

// UploadFields handles POST /catalogs/:id/fields/upload. The file is kept
// before parsing; failing rows are reported and the rest applied.
func (h *CatalogHandler) UploadFields(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	name, data, ok := h.UploadedFile(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	cat, err := h.catalogs.Get(ctx, id)
	if err != nil {
		h.Error(c, err)
		return
	}
	product, err := h.definitions.GetProduct(ctx, cat.ProductID)
	if err != nil {
		h.Error(c, err)
		return
	}

	rec := &schema.UploadedFile{CatalogID: cat.ID, FileName: name, Domain: &product.Domain, Content: data}
	if uid := h.GetUserID(c); uid != "" {
		rec.UserID = &uid
	}
	if err := h.definitions.RecordUpload(ctx, rec); err != nil {
		h.Error(c, err)
		return
	}

	rows, err := spreadsheet.ReadRows(bytes.NewReader(data))
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("cannot read spreadsheet").WithCause(err))
		return
	}
	if len(rows) < 2 {
		h.Error(c, apperror.NewValidation("spreadsheet has no data rows"))
		return
	}
	res, err := h.definitions.ImportFields(ctx, cat.ProductID, rows[1:])
	if err != nil {
		h.Error(c, err)
		return
	}
	if len(res.Errors) > 0 {
		h.Respond(c, http.StatusMultiStatus, dto.RowErrorsResponse{
			Message: "Some rows could not be processed",
			Created: res.Created,
			Errors:  res.Errors,
		})
		return
	}
	h.Created(c, dto.RowErrorsResponse{Message: "File processed successfully", Created: res.Created, Errors: []string{}})
}

// Uploads handles GET /catalogs/:id/uploads
func (h *CatalogHandler) Uploads(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	files, err := h.definitions.Uploads(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, files)
}
