package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tasktracker/internal/storage"
)

type ExportResponse struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func (h *Handler) exportTasks(c *gin.Context) {
	exp, err := h.exports.Export(c.Request.Context(), callerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.WithField("user_id", callerID(c)).WithField("location", exp.Location).Info("tasks exported")
	c.JSON(http.StatusCreated, ExportResponse{Key: exp.Key, URL: exp.URL, Count: exp.Count})
}

func (h *Handler) listExports(c *gin.Context) {
	objects, err := h.exports.ListExports(c.Request.Context(), callerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) purgeExports(c *gin.Context) {
	if err := h.exports.PurgeExports(c.Request.Context(), callerID(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
