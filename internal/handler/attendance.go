package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/query"
)

func (h *Handler) listAttendance(c *gin.Context) {
	var f attendance.Filter
	var p query.Pagination
	if !h.bindQuery(c, &f) || !h.bindQuery(c, &p) {
		return
	}
	page, err := h.attendance.List(c.Request.Context(), auth.Current(c), f, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", page)
}

func (h *Handler) attendanceStaff(c *gin.Context) {
	list, err := h.attendance.Staff(c.Request.Context(), auth.Current(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", list)
}

func (h *Handler) getAttendance(c *gin.Context) {
	a, err := h.attendance.Get(c.Request.Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", a)
}

func (h *Handler) markAttendance(c *gin.Context) {
	var body attendance.MarkInput
	if !h.bind(c, &body) {
		return
	}
	a, err := h.attendance.Mark(c.Request.Context(), auth.Current(c), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Attendance marked successfully", a)
}

type quickCheckInBody struct {
	StaffID string `json:"staffId" binding:"required,uuid"`
}

func (h *Handler) quickCheckIn(c *gin.Context) {
	var body quickCheckInBody
	if !h.bind(c, &body) {
		return
	}
	a, err := h.attendance.QuickCheckIn(c.Request.Context(), auth.Current(c), body.StaffID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Checked in successfully", a)
}

type checkOutBody struct {
	CheckOut *time.Time `json:"checkOut"`
}

func (h *Handler) checkOut(c *gin.Context) {
	var body checkOutBody
	if c.Request.ContentLength != 0 && !h.bind(c, &body) {
		return
	}
	a, err := h.attendance.CheckOut(c.Request.Context(), auth.Current(c), c.Param("id"), body.CheckOut)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Checked out successfully", a)
}

func (h *Handler) updateAttendance(c *gin.Context) {
	var body attendance.UpdateInput
	if !h.bind(c, &body) {
		return
	}
	a, err := h.attendance.Update(c.Request.Context(), auth.Current(c), c.Param("id"), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Attendance updated successfully", a)
}

func (h *Handler) deleteAttendance(c *gin.Context) {
	if err := h.attendance.Delete(c.Request.Context(), auth.Current(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Attendance deleted successfully", nil)
}

func (h *Handler) deleteAttendanceMany(c *gin.Context) {
	var body idsBody
	if !h.bind(c, &body) {
		return
	}
	res, err := h.attendance.DeleteMany(c.Request.Context(), auth.Current(c), body.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res.Summary("Deleted attendance"), res)
}

type bulkMarkBody struct {
	Records []attendance.MarkInput `json:"records" binding:"required,min=1,dive"`
}

func (h *Handler) bulkMark(c *gin.Context) {
	var body bulkMarkBody
	if !h.bind(c, &body) {
		return
	}
	res, err := h.attendance.BulkMark(c.Request.Context(), auth.Current(c), body.Records)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res.Summary("Marked attendance"), res)
}
