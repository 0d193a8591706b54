package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tasktracker/internal/service"
)

func (h *Handler) listTasks(c *gin.Context) {
	tasks, err := h.tasks.ListTasks(c.Request.Context(), callerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, renderTasks(opList, tasks))
}

func (h *Handler) createTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), callerID(c), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, renderTask(opCreate, *task))
}

func (h *Handler) getTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.fail(c, service.ErrNotFound)
		return
	}

	task, err := h.tasks.GetTask(c.Request.Context(), callerID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, renderTask(opRetrieve, *task))
}

func (h *Handler) replaceTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.fail(c, service.ErrNotFound)
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.tasks.ReplaceTask(c.Request.Context(), callerID(c), id, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, renderTask(opUpdate, *task))
}

func (h *Handler) updateTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.fail(c, service.ErrNotFound)
		return
	}
	var req patchTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.tasks.UpdateTask(c.Request.Context(), callerID(c), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, renderTask(opPartialUpdate, *task))
}

func (h *Handler) deleteTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.fail(c, service.ErrNotFound)
		return
	}

	if err := h.tasks.DeleteTask(c.Request.Context(), callerID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) tasksByStatus(c *gin.Context) {
	status := c.Query("status")
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status parameter required"})
		return
	}

	tasks, err := h.tasks.FilterByStatus(c.Request.Context(), callerID(c), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, renderTasks(opByStatus, tasks))
}

func (h *Handler) tasksByPriority(c *gin.Context) {
	priority := c.Query("priority")
	if priority == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority parameter required"})
		return
	}

	tasks, err := h.tasks.FilterByPriority(c.Request.Context(), callerID(c), priority)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, renderTasks(opByPriority, tasks))
}

func (h *Handler) markCompleted(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.fail(c, service.ErrNotFound)
		return
	}

	task, err := h.tasks.MarkCompleted(c.Request.Context(), callerID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, renderTask(opMarkCompleted, *task))
}
