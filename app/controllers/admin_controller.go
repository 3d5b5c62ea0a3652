package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/ctx"
	"github.com/carepath-academy/carepath/pkg/export"
	"github.com/carepath-academy/carepath/pkg/sse"
	"github.com/carepath-academy/carepath/pkg/ws"
)

// AdminController serves /api/admin. Every route sits behind the ADMIN role.
type AdminController struct {
	admin       *services.AdminService
	courses     *services.CourseService
	enrollments *services.EnrollmentService
	hub         *ws.Hub
}

func NewAdminController(admin *services.AdminService, courses *services.CourseService, enrollments *services.EnrollmentService, hub *ws.Hub) *AdminController {
	return &AdminController{admin: admin, courses: courses, enrollments: enrollments, hub: hub}
}

type statusInput struct {
	Status    string `json:"status"    validate:"required"`
	PaymentID string `json:"paymentId" validate:"omitempty,max=255"`
}

type roleInput struct {
	Role string `json:"role" validate:"required,oneof=ADMIN USER"`
}

// ─── Courses ──────────────────────────────────────────────────────────────────

func (h *AdminController) Courses(c *ctx.Context) {
	list, pg, err := h.courses.List(c.Context(), c.Query("status"), c.Page())
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(list, pg)
}

func (h *AdminController) Course(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	course, err := h.courses.Get(c.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(course)
}

func (h *AdminController) CreateCourse(c *ctx.Context) {
	var in services.CourseInput
	if !c.BindJSON(&in) {
		return
	}
	course, err := h.courses.Create(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(course)
}

func (h *AdminController) UpdateCourse(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.CourseInput
	if !c.BindJSON(&in) {
		return
	}
	course, err := h.courses.Update(c.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(course)
}

func (h *AdminController) CourseStatus(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in statusInput
	if !c.BindJSON(&in) {
		return
	}
	course, err := h.courses.SetStatus(c.Context(), id, in.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(course)
}

func (h *AdminController) DeleteCourse(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if err := h.courses.Delete(c.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"success": true})
}

// ─── Users ────────────────────────────────────────────────────────────────────

func (h *AdminController) Users(c *ctx.Context) {
	f := repositories.UserFilter{
		Search:         c.Query("search"),
		Role:           c.Query("role"),
		IncludeDeleted: c.Query("includeDeleted") == "true",
	}
	list, pg, err := h.admin.Users(c.Context(), f, c.Page())
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(list, pg)
}

func (h *AdminController) UserRole(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in roleInput
	if !c.BindJSON(&in) {
		return
	}
	u, err := h.admin.SetRole(c.Context(), c.UserID(), id, in.Role)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(u)
}

func (h *AdminController) DeleteUser(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if err := h.admin.DeleteUser(c.Context(), c.UserID(), id); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"success": true})
}

// ─── Enrollments ──────────────────────────────────────────────────────────────

// enrollmentFilter reads ?status= &courseId= &search= &from= &to= (dates
// as YYYY-MM-DD; "to" is inclusive).
func enrollmentFilter(c *ctx.Context) (repositories.EnrollmentFilter, bool) {
	f := repositories.EnrollmentFilter{Status: c.Query("status"), Search: c.Query("search")}
	if raw := c.Query("courseId"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(http.StatusBadRequest, "Invalid courseId")
			return f, false
		}
		f.CourseID = uint(n)
	}
	for _, d := range []struct {
		key  string
		dest **time.Time
		add  time.Duration
	}{{"from", &f.From, 0}, {"to", &f.To, 24 * time.Hour}} {
		raw := c.Query(d.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			c.Error(http.StatusBadRequest, fmt.Sprintf("Invalid %s date", d.key))
			return f, false
		}
		t = t.Add(d.add)
		*d.dest = &t
	}
	return f, true
}

func (h *AdminController) Enrollments(c *ctx.Context) {
	f, ok := enrollmentFilter(c)
	if !ok {
		return
	}
	list, pg, err := h.enrollments.List(c.Context(), f, c.Page())
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(list, pg)
}

func (h *AdminController) Enrollment(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	e, err := h.enrollments.Get(c.Context(), id, requester(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(e)
}

func (h *AdminController) UpdateEnrollment(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.EnrollmentUpdate
	if !c.BindJSON(&in) {
		return
	}
	e, err := h.enrollments.Update(c.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(e)
}

func (h *AdminController) EnrollmentStatus(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in statusInput
	if !c.BindJSON(&in) {
		return
	}
	e, err := h.enrollments.UpdateStatus(c.Context(), id, in.Status, in.PaymentID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(e)
}

func (h *AdminController) DeleteEnrollment(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if err := h.enrollments.Delete(c.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"success": true})
}

// Export streams the filtered enrollments as an .xlsx attachment.
func (h *AdminController) Export(c *ctx.Context) {
	f, ok := enrollmentFilter(c)
	if !ok {
		return
	}
	body, err := h.enrollments.Export(c.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	name := fmt.Sprintf("enrollments-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.SetHeader("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, export.ContentType, body)
}

// ─── Dashboard ────────────────────────────────────────────────────────────────

func (h *AdminController) Stats(c *ctx.Context) {
	st, err := h.admin.Stats(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(st)
}

// Feed upgrades to the live event WebSocket.
func (h *AdminController) Feed(c *ctx.Context) {
	ws.Upgrade(c.W, c.R, h.hub)
}

// Events serves the same feed as Server-Sent Events.
func (h *AdminController) Events(c *ctx.Context) {
	msgs, ok := h.hub.Subscribe(c.Context())
	if !ok {
		c.Error(http.StatusServiceUnavailable, "Live feed unavailable")
		return
	}
	stream, err := sse.New(c.W, c.R)
	if err != nil {
		c.Logger().Warn("sse: stream not started", "error", err)
		return
	}
	if err := stream.Pipe(msgs, 25*time.Second); err != nil {
		c.Logger().Debug("sse: client gone", "error", err)
	}
}
