package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-slot-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-slot-api/pkg/errors"
)

// ErrorCodeHeader mirrors the error code of a failed call so clients and proxies can branch
// without parsing the body.
const ErrorCodeHeader = "X-Error-Code"

// Body is the JSON shape of every API reply.
type Body struct {
	Data       interface{}        `json:"data,omitempty"`
	Error      *appErrors.Error   `json:"error,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Meta       Meta               `json:"meta,omitempty"`
}

// Meta carries reply-level extras such as slot counts or who triggered a run.
type Meta map[string]interface{}

// Schedules change under every move, so nothing is cacheable.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// OK sends a 200 reply with an optional meta block.
func OK(c *gin.Context, data interface{}, meta ...Meta) {
	write(c, http.StatusOK, Body{Data: data, Meta: firstMeta(meta)})
}

// Page sends one page of a listing.
func Page(c *gin.Context, items interface{}, pagination *models.Pagination) {
	write(c, http.StatusOK, Body{Data: items, Pagination: pagination})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, Body{Data: data})
}

// Error converts err into the typed error body and status.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header(ErrorCodeHeader, appErr.Code)
	write(c, appErr.Status, Body{Error: appErr})
}

// Attachment streams a ledger export.
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	noStore(c)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func write(c *gin.Context, status int, body Body) {
	noStore(c)
	c.JSON(status, body)
}

func firstMeta(meta []Meta) Meta {
	if len(meta) == 0 {
		return nil
	}
	return meta[0]
}
