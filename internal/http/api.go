package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tasktracker/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth        service.AuthService
	users       service.UserService
	tasks       service.TaskService
	exports     service.ExportService
	logger      *logrus.Logger
	exposeTasks bool
}

// Options bundles the collaborators of a Handler.
type Options struct {
	Auth    service.AuthService
	Users   service.UserService
	Tasks   service.TaskService
	Exports service.ExportService
	Logger  *logrus.Logger
	// ExposeTasks embeds task lists in other users' profiles.
	ExposeTasks bool
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	useJSONFieldNames()
	return &Handler{
		auth:        opts.Auth,
		users:       opts.Users,
		tasks:       opts.Tasks,
		exports:     opts.Exports,
		logger:      opts.Logger,
		exposeTasks: opts.ExposeTasks,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), h.requestLogger())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		authGroup := api.Group("/auth")
		authGroup.POST("/register/", h.register)
		authGroup.POST("/login/", h.login)
		authGroup.POST("/refresh/", h.refresh)

		protected := api.Group("", h.requireAuth())
		protected.GET("/users/", h.listUsers)
		protected.GET("/users/me/", h.me)
		protected.POST("/users/logout/", h.logout)
		protected.GET("/users/:id/", h.getUser)

		protected.GET("/tasks/", h.listTasks)
		protected.POST("/tasks/", h.createTask)
		protected.GET("/tasks/by_status/", h.tasksByStatus)
		protected.GET("/tasks/by_priority/", h.tasksByPriority)
		protected.POST("/tasks/export/", h.exportTasks)
		protected.GET("/tasks/exports/", h.listExports)
		protected.DELETE("/tasks/exports/", h.purgeExports)
		protected.GET("/tasks/:id/", h.getTask)
		protected.PUT("/tasks/:id/", h.replaceTask)
		protected.PATCH("/tasks/:id/", h.updateTask)
		protected.DELETE("/tasks/:id/", h.deleteTask)
		protected.PATCH("/tasks/:id/mark_completed/", h.markCompleted)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
