package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sage/internal/domain"
	"sage/internal/domain/materialize"
	"sage/internal/domain/schema"
	"sage/internal/infrastructure/http/v1/dto"
)

// ProductService manages product definitions.
type ProductService interface {
	CreateProduct(ctx context.Context, p *schema.Product) error
	GetProduct(ctx context.Context, id int64) (*schema.Product, error)
	ListProducts(ctx context.Context, f schema.ProductFilter) (domain.ListResult[*schema.Product], error)
	UpdateProduct(ctx context.Context, p *schema.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

// Materializer turns a product definition into a storage table.
type Materializer interface {
	Materialize(ctx context.Context, productID int64) (*materialize.Result, error)
	Sync(ctx context.Context, productID int64) (*materialize.SyncResult, error)
}

// ProductHandler handles product endpoints.
type ProductHandler struct {
	*BaseHandler
	products     ProductService
	materializer Materializer
}

// NewProductHandler creates a new product handler.
func NewProductHandler(products ProductService, m Materializer) *ProductHandler {
	return &ProductHandler{BaseHandler: NewBaseHandler(), products: products, materializer: m}
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	var q dto.ProductQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.products.ListProducts(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.ProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p := req.ToEntity()
	if err := h.products.CreateProduct(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Update handles PUT /products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	p, err := h.products.GetProduct(ctx, id)
	if err != nil {
		h.Error(c, err)
		return
	}
	p.SchemaName = req.SchemaName
	p.Domain = req.Domain
	p.Description = req.Description
	if err := h.products.UpdateProduct(ctx, p); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Delete handles DELETE /products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.products.DeleteProduct(c.Request.Context(), id); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Materialize handles POST /products/:id/materialize
func (h *ProductHandler) Materialize(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	res, err := h.materializer.Materialize(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	if res.Created {
		h.Created(c, res)
		return
	}
	h.OK(c, res)
}

// Sync handles POST /products/:id/sync
func (h *ProductHandler) Sync(c *gin.Context) {
	id, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	res, err := h.materializer.Sync(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}
