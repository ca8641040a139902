// Package handler exposes the services over HTTP with gin. Every response
// uses the {success, message, data} envelope.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/cloudinary"
	"attendance/internal/httpmiddleware"
	"attendance/internal/mail"
	"attendance/internal/metrics"
	"attendance/internal/notification"
	"attendance/internal/staff"
	"attendance/internal/user"
)

// ImageUploader stores avatars with an external provider.
type ImageUploader interface {
	Configured() bool
	Upload(ctx context.Context, data []byte, filename string) (*cloudinary.UploadResult, error)
	UploadDataURL(ctx context.Context, data string) (*cloudinary.UploadResult, error)
}

// Services are the dependencies of Handler.
type Services struct {
	Users         *user.Service
	Staff         *staff.Service
	Attendance    *attendance.Service
	Notifications *notification.Service
	Mail          *mail.Dispatcher
	Sessions      *auth.Sessions
	Images        ImageUploader
	Logger        *slog.Logger
}

// Handler holds the HTTP endpoints.
type Handler struct {
	users         *user.Service
	staff         *staff.Service
	attendance    *attendance.Service
	notifications *notification.Service
	mail          *mail.Dispatcher
	sessions      *auth.Sessions
	images        ImageUploader
	logger        *slog.Logger
}

// New creates a Handler.
func New(s Services) *Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		users:         s.Users,
		staff:         s.Staff,
		attendance:    s.Attendance,
		notifications: s.Notifications,
		mail:          s.Mail,
		sessions:      s.Sessions,
		images:        s.Images,
		logger:        logger,
	}
}

// RouterConfig holds the cross-cutting HTTP settings.
type RouterConfig struct {
	CORSOrigins []string
	Metrics     *metrics.Metrics
	Limiter     *httpmiddleware.TokenBucket
	// Health lists named dependency checks reported by /healthz.
	Health map[string]func(context.Context) bool
	// AccessLog enables gin's request logger.
	AccessLog bool
}

// Router builds the gin engine with middleware and all routes.
func (h *Handler) Router(cfg RouterConfig) *gin.Engine {
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.AccessLog {
		r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(httpmiddleware.RequestLogger(h.logger))
	r.Use(httpmiddleware.SecureHeaders())
	r.Use(httpmiddleware.Metrics(cfg.Metrics))
	r.Use(h.sessions.Authenticate())
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware())
	}

	r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	r.GET("/healthz", healthz(cfg.Health))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/login", h.login)
	authGroup.POST("/register", h.register)
	authGroup.POST("/logout", h.logout)

	signedIn := api.Group("", auth.RequireSession())
	admin := auth.RequireRole(auth.RoleAdmin)

	me := signedIn.Group("/user")
	me.GET("", h.currentUser)
	me.PATCH("", h.updateCurrentUser)
	me.POST("/image", h.uploadImage)

	users := signedIn.Group("/users", admin)
	users.GET("", h.listUsers)
	users.POST("", h.createUser)
	users.POST("/bulk-delete", h.deleteUsers)
	users.GET("/:id", h.getUser)
	users.PATCH("/:id", h.updateUser)
	users.DELETE("/:id", h.deleteUser)
	users.PATCH("/:id/toggle-status", h.toggleUser)

	st := signedIn.Group("/staff")
	st.GET("", h.listStaff)
	st.GET("/members", h.staffMembers)
	st.GET("/departments", h.departments)
	st.GET("/:id", h.getStaff)
	st.POST("", admin, h.createStaff)
	st.POST("/bulk-delete", admin, h.deleteStaffMany)
	st.PATCH("/:id", admin, h.updateStaff)
	st.DELETE("/:id", admin, h.deleteStaff)
	st.PATCH("/:id/toggle-status", admin, h.toggleStaff)

	att := signedIn.Group("/attendance")
	att.GET("", h.listAttendance)
	att.GET("/staff", h.attendanceStaff)
	att.GET("/:id", h.getAttendance)
	att.POST("", h.markAttendance)
	att.POST("/quick-check-in", h.quickCheckIn)
	att.POST("/:id/check-out", h.checkOut)
	att.POST("/bulk-mark", admin, h.bulkMark)
	att.POST("/bulk-delete", admin, h.deleteAttendanceMany)
	att.PATCH("/:id", admin, h.updateAttendance)
	att.DELETE("/:id", admin, h.deleteAttendance)

	notes := signedIn.Group("/notifications")
	notes.GET("", h.listNotifications)
	notes.GET("/unread-count", h.unreadCount)
	notes.GET("/:id", h.getNotification)
	notes.GET("/:id/details", h.notificationDetails)
	notes.POST("", admin, h.createNotification)
	notes.POST("/read", h.markNotificationsRead)
	notes.POST("/read-all", h.markAllNotificationsRead)
	notes.POST("/bulk-delete", h.deleteNotifications)
	notes.PATCH("/:id", h.updateNotification)
	notes.PATCH("/:id/read", h.markNotificationRead)
	notes.DELETE("/:id", h.deleteNotification)

	emails := signedIn.Group("/emails", admin)
	emails.POST("/bulk", h.sendBulkEmail)
	emails.POST("/invoice", h.sendInvoice)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Message: "Route not found"})
	})
	return r
}

func healthz(checks map[string]func(context.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		report := gin.H{"status": "ok"}
		for name, check := range checks {
			healthy := check(ctx)
			report[name] = healthy
			if !healthy {
				status = http.StatusServiceUnavailable
				report["status"] = "degraded"
			}
		}
		c.JSON(status, report)
	}
}

// idsBody is the payload of every bulk endpoint.
type idsBody struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}
