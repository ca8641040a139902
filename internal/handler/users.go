package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"attendance/internal/auth"
	"attendance/internal/notification"
	"attendance/internal/query"
	"attendance/internal/user"
)

func (h *Handler) listUsers(c *gin.Context) {
	var f user.Filter
	var p query.Pagination
	if !h.bindQuery(c, &f) || !h.bindQuery(c, &p) {
		return
	}
	page, err := h.users.List(c.Request.Context(), auth.Current(c), f, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", page)
}

func (h *Handler) createUser(c *gin.Context) {
	var body user.NewUser
	if !h.bind(c, &body) {
		return
	}
	u, err := h.users.Create(c.Request.Context(), auth.Current(c), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "User created successfully", u)
}

func (h *Handler) getUser(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", u)
}

func (h *Handler) updateUser(c *gin.Context) {
	var body user.UpdateUser
	if !h.bind(c, &body) {
		return
	}
	u, err := h.users.Update(c.Request.Context(), auth.Current(c), c.Param("id"), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "User updated successfully", u)
}

func (h *Handler) deleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.users.Delete(ctx, auth.Current(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	// The user's notifications went with it.
	h.notifications.Forget(ctx)
	respond(c, http.StatusOK, "User deleted successfully", nil)
}

func (h *Handler) deleteUsers(c *gin.Context) {
	var body idsBody
	if !h.bind(c, &body) {
		return
	}
	ctx := c.Request.Context()
	res, err := h.users.DeleteMany(ctx, auth.Current(c), body.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.notifications.Forget(ctx)
	respond(c, http.StatusOK, res.Summary("Deleted users"), res)
}

func (h *Handler) toggleUser(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := h.users.ToggleStatus(ctx, auth.Current(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	state := "deactivated"
	if u.IsActive {
		state = "activated"
	}
	const title = "Account status changed"
	msg := "Your account has been " + state + "."
	if _, err := h.notifications.Add(ctx, notification.Input{
		UserID:  &u.ID,
		Type:    notification.TypeAccount,
		Title:   title,
		Message: msg,
	}); err != nil {
		h.log(ctx).WarnContext(ctx, "account notification failed", "user_id", u.ID, "error", err)
	}
	h.mail.Notice(ctx, u.Email, u.Name, title, msg)
	respond(c, http.StatusOK, "User "+state+" successfully", u)
}
