package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"attendance/internal/auth"
	"attendance/internal/query"
	"attendance/internal/staff"
)

func (h *Handler) listStaff(c *gin.Context) {
	var f staff.Filter
	var p query.Pagination
	if !h.bindQuery(c, &f) || !h.bindQuery(c, &p) {
		return
	}
	page, err := h.staff.List(c.Request.Context(), auth.Current(c), f, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", page)
}

func (h *Handler) staffMembers(c *gin.Context) {
	members, err := h.attendance.StaffMembers(c.Request.Context(), auth.Current(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", members)
}

func (h *Handler) departments(c *gin.Context) {
	deps, err := h.staff.Departments(c.Request.Context(), auth.Current(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", deps)
}

func (h *Handler) getStaff(c *gin.Context) {
	st, err := h.staff.Get(c.Request.Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", st)
}

func (h *Handler) createStaff(c *gin.Context) {
	var body staff.NewStaff
	if !h.bind(c, &body) {
		return
	}
	ctx := c.Request.Context()
	st, err := h.staff.Create(ctx, auth.Current(c), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.mail.Welcome(ctx, body.Email, st.FullName())
	respond(c, http.StatusCreated, "Staff created successfully", st)
}

func (h *Handler) updateStaff(c *gin.Context) {
	var body staff.UpdateStaff
	if !h.bind(c, &body) {
		return
	}
	st, err := h.staff.Update(c.Request.Context(), auth.Current(c), c.Param("id"), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Staff updated successfully", st)
}

func (h *Handler) deleteStaff(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.staff.Delete(ctx, auth.Current(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	h.notifications.Forget(ctx)
	respond(c, http.StatusOK, "Staff deleted successfully", nil)
}

func (h *Handler) deleteStaffMany(c *gin.Context) {
	var body idsBody
	if !h.bind(c, &body) {
		return
	}
	ctx := c.Request.Context()
	res, err := h.staff.DeleteMany(ctx, auth.Current(c), body.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.notifications.Forget(ctx)
	respond(c, http.StatusOK, res.Summary("Deleted staff"), res)
}

func (h *Handler) toggleStaff(c *gin.Context) {
	st, err := h.staff.ToggleStatus(c.Request.Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	state := "deactivated"
	if st.User != nil && st.User.IsActive {
		state = "activated"
	}
	respond(c, http.StatusOK, "Staff account "+state, st)
}
