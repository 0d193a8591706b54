package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tasktracker/internal/domain"
	"tasktracker/internal/service"
)

// me returns the caller's profile with their own tasks embedded.
func (h *Handler) me(c *gin.Context) {
	id := callerID(c)
	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	tasks, err := h.tasks.ListTasks(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userDetail(*user, tasks))
}

// listUsers and getUser let any authenticated caller read any profile.
// Task lists of other users are only included when exposeTasks is set.
func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]any, len(users))
	for i := range users {
		profile, err := h.profile(c, users[i])
		if err != nil {
			h.fail(c, err)
			return
		}
		resp[i] = profile
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.fail(c, service.ErrNotFound)
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	profile, err := h.profile(c, *user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) profile(c *gin.Context, user domain.User) (any, error) {
	if !h.exposeTasks {
		return userToResponse(user), nil
	}
	tasks, err := h.tasks.ListTasks(c.Request.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	return userDetail(user, tasks), nil
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
