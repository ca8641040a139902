package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendance/internal/auth"
	"attendance/internal/notification"
	"attendance/internal/query"
)

func (h *Handler) listNotifications(c *gin.Context) {
	var f notification.Filter
	var p query.Pagination
	if !h.bindQuery(c, &f) || !h.bindQuery(c, &p) {
		return
	}
	page, err := h.notifications.List(c.Request.Context(), auth.Current(c), f, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", page)
}

func (h *Handler) unreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), auth.Current(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"count": n})
}

func (h *Handler) getNotification(c *gin.Context) {
	n, err := h.notifications.Get(c.Request.Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", n)
}

func (h *Handler) notificationDetails(c *gin.Context) {
	n, err := h.notifications.GetWithUser(c.Request.Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", n)
}

func (h *Handler) createNotification(c *gin.Context) {
	var body notification.Input
	if !h.bind(c, &body) {
		return
	}
	n, err := h.notifications.Create(c.Request.Context(), auth.Current(c), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Notification created successfully", n)
}

func (h *Handler) updateNotification(c *gin.Context) {
	var body notification.Update
	if !h.bind(c, &body) {
		return
	}
	n, err := h.notifications.Update(c.Request.Context(), auth.Current(c), c.Param("id"), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Notification updated successfully", n)
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	n, err := h.notifications.MarkRead(c.Request.Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Notification marked as read", n)
}

func (h *Handler) markNotificationsRead(c *gin.Context) {
	var body idsBody
	if !h.bind(c, &body) {
		return
	}
	n, err := h.notifications.MarkManyRead(c.Request.Context(), auth.Current(c), body.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf("%d notifications marked as read", n), gin.H{"count": n})
}

func (h *Handler) markAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), auth.Current(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "All notifications marked as read", gin.H{"count": n})
}

func (h *Handler) deleteNotification(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), auth.Current(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Notification deleted successfully", nil)
}

func (h *Handler) deleteNotifications(c *gin.Context) {
	var body idsBody
	if !h.bind(c, &body) {
		return
	}
	n, err := h.notifications.DeleteMany(c.Request.Context(), auth.Current(c), body.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf("Deleted %d notifications", n), gin.H{"count": n})
}
