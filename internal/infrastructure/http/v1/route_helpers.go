package v1

import (
	"github.com/gin-gonic/gin"
)

// CRUDRouteHandler defines the interface for resources with standard CRUD.
type CRUDRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterCRUDRoutes registers standard CRUD routes for a resource.
// Reads are open to the group; writes additionally pass through write.
//
// Usage:
//
//	handler := handlers.NewProductHandler(schemaSvc, materializer)
//	RegisterCRUDRoutes(rg.Group("/products"), handler, middleware.RequireRole(auth.RoleEditor))
func RegisterCRUDRoutes(group *gin.RouterGroup, handler CRUDRouteHandler, write gin.HandlerFunc) {
	group.GET("", handler.List)
	group.POST("", write, handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", write, handler.Update)
	group.DELETE("/:id", write, handler.Delete)
}
