// Package handlers provides HTTP request handlers.
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"sage/internal/core/apperror"
	appctx "sage/internal/core/context"
	"sage/internal/infrastructure/http/v1/dto"
	"sage/internal/infrastructure/http/v1/middleware"
	"sage/internal/infrastructure/spreadsheet"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindNumbers binds a JSON body like BindJSON but keeps numbers as
// json.Number, so decimal values reach coercion with every digit.
func (h *BaseHandler) BindNumbers(c *gin.Context, obj any) bool {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("cannot read request body").WithCause(err))
		return false
	}
	return h.decodeNumbers(c, body, obj)
}

func (h *BaseHandler) decodeNumbers(c *gin.Context, body []byte, obj any) bool {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	err := dec.Decode(obj)
	if err == nil {
		err = binding.Validator.ValidateStruct(obj)
	}
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error processes error and sends appropriate response.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	h.HandleError(c, err)
}

// HandleError registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParamID parses a positive integer path parameter.
func (h *BaseHandler) ParamID(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		h.Error(c, apperror.NewInvalidInput("invalid "+name).WithDetail("value", c.Param(name)))
		return 0, false
	}
	return v, true
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// GetUserID extracts user ID from request context.
func (h *BaseHandler) GetUserID(c *gin.Context) string {
	return appctx.GetUserID(c.Request.Context())
}

// CompleteIdempotency marks idempotency key as completed with the same HTTP semantics
// (status code + content type + body) for correct replay.
func (h *BaseHandler) CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	middleware.CompleteIdempotency(c, statusCode, contentType, response)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.Respond(c, http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.Respond(c, http.StatusOK, data)
}

// Respond sends data with status.
func (h *BaseHandler) Respond(c *gin.Context, status int, data any) {
	h.CompleteIdempotency(c, status, "application/json", data)
	c.JSON(status, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	// 204 must replay as 204 with empty body.
	h.CompleteIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}

// Success sends success response.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	h.OK(c, dto.SuccessResponse{Success: true, Message: message})
}

// Spreadsheet renders an xlsx attachment.
func (h *BaseHandler) Spreadsheet(c *gin.Context, filename string, write func(w io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Access-Control-Expose-Headers", "Content-Disposition")
	c.Data(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
}

// UploadedFile opens the multipart "file" field.
func (h *BaseHandler) UploadedFile(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("no file uploaded").WithDetail("field", "file"))
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("cannot open uploaded file").WithCause(err))
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("cannot read uploaded file").WithCause(err))
		return "", nil, false
	}
	return fh.Filename, data, true
}
