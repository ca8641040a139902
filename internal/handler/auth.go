package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"attendance/internal/apperr"
	"attendance/internal/auth"
	"attendance/internal/notification"
	"attendance/internal/user"
)

type loginBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerBody struct {
	Name     string `json:"name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type sessionData struct {
	User      user.User `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) login(c *gin.Context) {
	var body loginBody
	if !h.bind(c, &body) {
		return
	}
	u, err := h.users.Authenticate(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	sess, err := h.sessions.Issue(u.ID, u.Role)
	if err != nil {
		h.fail(c, fmt.Errorf("issue session: %w", err))
		return
	}
	h.sessions.SetCookie(c, sess)
	respond(c, http.StatusOK, "Login successful", sessionData{User: u, ExpiresAt: sess.ExpiresAt})
}

func (h *Handler) register(c *gin.Context) {
	var body registerBody
	if !h.bind(c, &body) {
		return
	}
	ctx := c.Request.Context()
	u, err := h.users.Register(ctx, body.Name, body.Email, body.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.notifications.Add(ctx, notification.Input{
		Type:    notification.TypeRegistration,
		Title:   "New user registered",
		Message: fmt.Sprintf("%s (%s) created an account.", u.Name, u.Email),
		IsAdmin: true,
	}); err != nil {
		h.log(ctx).WarnContext(ctx, "registration notification failed", "user_id", u.ID, "error", err)
	}
	h.mail.Welcome(ctx, u.Email, u.Name)
	respond(c, http.StatusCreated, "Account created successfully", u)
}

func (h *Handler) logout(c *gin.Context) {
	if p := auth.Current(c); p.Authenticated() {
		if err := h.sessions.Revoke(c.Request.Context(), p); err != nil {
			h.log(c.Request.Context()).WarnContext(c.Request.Context(), "session revoke failed", "user_id", p.UserID, "error", err)
		}
	}
	h.sessions.ClearCookie(c)
	respond(c, http.StatusOK, "Logged out", nil)
}

func (h *Handler) currentUser(c *gin.Context) {
	p := auth.Current(c)
	u, err := h.users.Get(c.Request.Context(), p, p.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", u)
}

func (h *Handler) updateCurrentUser(c *gin.Context) {
	var body user.UpdateProfile
	if !h.bind(c, &body) {
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), auth.Current(c), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated successfully", u)
}

const maxImageBytes = 5 << 20

// uploadImage accepts a multipart "file" field or a JSON {"data": "<data URL>"}
// body, stores it with the image provider and sets it as the avatar.
func (h *Handler) uploadImage(c *gin.Context) {
	if h.images == nil || !h.images.Configured() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, envelope{Message: "Image storage is not configured"})
		return
	}
	ctx := c.Request.Context()
	var url string
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			h.fail(c, apperr.Invalid("file", "file is required"))
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
		if err != nil {
			h.fail(c, fmt.Errorf("read upload: %w", err))
			return
		}
		if len(data) > maxImageBytes {
			h.fail(c, apperr.Invalid("file", "Image must be at most 5 MB"))
			return
		}
		res, err := h.images.Upload(ctx, data, header.Filename)
		if err != nil {
			h.uploadFailed(c, err)
			return
		}
		url = res.SecureURL
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if !h.bind(c, &body) {
			return
		}
		res, err := h.images.UploadDataURL(ctx, body.Data)
		if err != nil {
			h.uploadFailed(c, err)
			return
		}
		url = res.SecureURL
	}
	u, err := h.users.SetImage(ctx, auth.Current(c), url)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile image updated", u)
}

func (h *Handler) uploadFailed(c *gin.Context, err error) {
	h.log(c.Request.Context()).ErrorContext(c.Request.Context(), "image upload failed", "error", err)
	c.AbortWithStatusJSON(http.StatusBadGateway, envelope{Message: "Image upload failed"})
}
