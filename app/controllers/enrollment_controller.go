package controllers

import (
	"fmt"
	"net/http"

	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/ctx"
)

type EnrollmentController struct {
	enrollments *services.EnrollmentService
}

func NewEnrollmentController(enrollments *services.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{enrollments: enrollments}
}

// Submit handles POST /api/enrollments. Signed-in submitters are linked to
// the enrollment; anonymous ones are not.
func (h *EnrollmentController) Submit(c *ctx.Context) {
	var in services.EnrollmentInput
	if !c.BindJSON(&in) {
		return
	}
	var userID *uint
	if id := c.UserID(); id != 0 {
		userID = &id
	}
	e, err := h.enrollments.Submit(c.Context(), userID, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(e)
}

// Mine handles GET /api/enrollments.
func (h *EnrollmentController) Mine(c *ctx.Context) {
	list, err := h.enrollments.ListForUser(c.Context(), c.UserID())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(list)
}

// ViewPDF handles GET /api/view-pdf/{id}.
func (h *EnrollmentController) ViewPDF(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	body, err := h.enrollments.PDF(c.Context(), id, requester(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.SetHeader("Content-Disposition", fmt.Sprintf(`inline; filename="enrollment-%d.pdf"`, id))
	c.SetHeader("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, "application/pdf", body)
}
