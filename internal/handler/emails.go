package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendance/internal/apperr"
	"attendance/internal/auth"
	"attendance/internal/mail"
)

type bulkEmailBody struct {
	// UserIDs selects recipients; empty means every active staff user.
	UserIDs []string `json:"userIds" binding:"omitempty,dive,uuid"`
	Subject string   `json:"subject" binding:"required,max=200"`
	Message string   `json:"message" binding:"required"`
}

func (h *Handler) sendBulkEmail(c *gin.Context) {
	var body bulkEmailBody
	if !h.bind(c, &body) {
		return
	}
	ctx := c.Request.Context()
	users, err := h.users.Recipients(ctx, auth.Current(c), body.UserIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(users) == 0 {
		h.fail(c, apperr.Invalid("userIds", "No recipients found"))
		return
	}
	recipients := make([]mail.Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, mail.Recipient{Email: u.Email, Name: u.Name})
	}
	queued, err := h.mail.Bulk(ctx, recipients, body.Subject, body.Message)
	if err != nil {
		h.log(ctx).WarnContext(ctx, "bulk email partially queued", "queued", queued, "recipients", len(recipients), "error", err)
	}
	if queued == 0 {
		h.fail(c, fmt.Errorf("queue bulk email: %w", err))
		return
	}
	respond(c, http.StatusAccepted, fmt.Sprintf("Email queued for %d recipients", queued), gin.H{"queued": queued, "failed": len(recipients) - queued})
}

type invoiceBody struct {
	To      string           `json:"to" binding:"required,email"`
	Invoice mail.InvoiceData `json:"invoice"`
}

func (h *Handler) sendInvoice(c *gin.Context) {
	var body invoiceBody
	if !h.bind(c, &body) {
		return
	}
	if err := auth.Current(c).RequireAdmin(); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.mail.Invoice(c.Request.Context(), body.To, body.Invoice); err != nil {
		h.fail(c, fmt.Errorf("queue invoice: %w", err))
		return
	}
	respond(c, http.StatusAccepted, "Invoice queued", gin.H{"total": body.Invoice.Total()})
}
