package controllers

import (
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/ctx"
)

type CourseController struct {
	courses *services.CourseService
}

func NewCourseController(courses *services.CourseService) *CourseController {
	return &CourseController{courses: courses}
}

// Index handles GET /api/courses.
func (h *CourseController) Index(c *ctx.Context) {
	list, pg, err := h.courses.ListActive(c.Context(), c.Page())
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(list, pg)
}

// Show handles GET /api/courses/{id}.
func (h *CourseController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	course, err := h.courses.GetActive(c.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(course)
}
