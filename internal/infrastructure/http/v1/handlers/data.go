package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"sage/internal/core/apperror"
	appctx "sage/internal/core/context"
	"sage/internal/domain/catalog"
	"sage/internal/domain/ingest"
	"sage/internal/domain/reader"
	"sage/internal/infrastructure/http/v1/dto"
	"sage/internal/infrastructure/spreadsheet"
)

// Ingester validates and stores product rows.
type Ingester interface {
	ValidateOnly(ctx context.Context, productID int64, headers []string, rows [][]any) (*ingest.Report, error)
	ValidateRecords(ctx context.Context, productID int64, records []map[string]any) (*ingest.Report, error)
	SaveRow(ctx context.Context, productID int64, values map[string]any) (*ingest.SaveResult, error)
	SaveBulk(ctx context.Context, productID int64, rows []any, raw json.RawMessage) (*ingest.SaveResult, error)
}

// TableReader describes and reads materialized tables.
type TableReader interface {
	Describe(ctx context.Context, productID int64) (*reader.Description, error)
	Rows(ctx context.Context, productID int64) (*reader.Rows, error)
}

// CatalogGetter resolves the catalog behind an API key caller.
type CatalogGetter interface {
	Get(ctx context.Context, id int64) (*catalog.Catalog, error)
}

// DataHandler handles row validation, storage and reads of product tables.
type DataHandler struct {
	*BaseHandler
	ingest   Ingester
	tables   TableReader
	catalogs CatalogGetter
}

// NewDataHandler creates a new data handler.
func NewDataHandler(in Ingester, tables TableReader, catalogs CatalogGetter) *DataHandler {
	return &DataHandler{BaseHandler: NewBaseHandler(), ingest: in, tables: tables, catalogs: catalogs}
}

// Describe handles GET /products/:id/table
func (h *DataHandler) Describe(c *gin.Context) {
	pid, ok := h.product(c)
	if !ok {
		return
	}
	d, err := h.tables.Describe(c.Request.Context(), pid)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Rows handles GET /products/:id/table/rows
func (h *DataHandler) Rows(c *gin.Context) {
	pid, ok := h.product(c)
	if !ok {
		return
	}
	rows, err := h.tables.Rows(c.Request.Context(), pid)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rows)
}

// Template handles GET /products/:id/template
func (h *DataHandler) Template(c *gin.Context) {
	pid, ok := h.product(c)
	if !ok {
		return
	}
	d, err := h.tables.Describe(c.Request.Context(), pid)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Spreadsheet(c, d.Table+"_template.xlsx", func(w io.Writer) error {
		return spreadsheet.WriteTemplate(w, d)
	})
}

// Validate handles POST /products/:id/validate. The body is either JSON or
// a multipart spreadsheet in the "file" field.
func (h *DataHandler) Validate(c *gin.Context) {
	pid, ok := h.product(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var (
		rep *ingest.Report
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		_, data, ok := h.UploadedFile(c)
		if !ok {
			return
		}
		headers, rows, rerr := spreadsheet.ReadTable(bytes.NewReader(data))
		if rerr != nil {
			h.Error(c, apperror.NewInvalidInput("cannot read spreadsheet").WithCause(rerr))
			return
		}
		rep, err = h.ingest.ValidateOnly(ctx, pid, headers, spreadsheet.Cells(rows))
	} else {
		var req dto.ValidateRequest
		if !h.BindNumbers(c, &req) {
			return
		}
		if req.Records != nil {
			rep, err = h.ingest.ValidateRecords(ctx, pid, req.Records)
		} else {
			rep, err = h.ingest.ValidateOnly(ctx, pid, req.Headers, req.Rows)
		}
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	if !rep.Valid() {
		h.Error(c, apperror.NewValidationFailed(fmt.Sprintf("%d validation errors", len(rep.Errors)), rep.Errors).
			WithDetail("email_sent", rep.EmailSent).
			WithDetail("alert_created", rep.AlertCreated))
		return
	}
	h.OK(c, gin.H{"message": "Validation passed", "errors": rep.Errors})
}

// SaveRow handles POST /products/:id/rows
func (h *DataHandler) SaveRow(c *gin.Context) {
	pid, ok := h.product(c)
	if !ok {
		return
	}
	var req dto.SaveRowRequest
	if !h.BindNumbers(c, &req) {
		return
	}
	res, err := h.ingest.SaveRow(c.Request.Context(), pid, req.Values)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// SaveBulk handles POST /products/:id/rows/bulk. The body is stored
// verbatim on the submission record.
func (h *DataHandler) SaveBulk(c *gin.Context) {
	pid, ok := h.product(c)
	if !ok {
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("cannot read request body").WithCause(err))
		return
	}
	var req dto.BulkSaveRequest
	if !h.decodeNumbers(c, raw, &req) {
		return
	}
	if req.Rows == nil {
		h.Error(c, apperror.NewValidation("rows is required").WithDetail("field", "rows"))
		return
	}
	res, err := h.ingest.SaveBulk(c.Request.Context(), pid, req.Rows, raw)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// product reads the :id parameter and checks that an API key caller is
// bound to that product.
func (h *DataHandler) product(c *gin.Context) (int64, bool) {
	pid, ok := h.ParamID(c, "id")
	if !ok {
		return 0, false
	}
	user := appctx.GetUser(c.Request.Context())
	if user == nil || user.CatalogID == 0 {
		return pid, true
	}
	cat, err := h.catalogs.Get(c.Request.Context(), user.CatalogID)
	if err != nil {
		h.Error(c, err)
		return 0, false
	}
	if cat.ProductID != pid {
		h.Error(c, apperror.NewForbidden("API key is not valid for this product").
			WithDetail("catalog_id", cat.ID))
		return 0, false
	}
	return pid, true
}
