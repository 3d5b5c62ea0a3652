package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/pkg/export"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/metrics"
	"github.com/carepath-academy/carepath/pkg/orm"
	"github.com/carepath-academy/carepath/pkg/pdf"
	"github.com/carepath-academy/carepath/pkg/storage"
)

// EnrollmentInput is the submitted form.
type EnrollmentInput struct {
	StudentName string         `json:"studentName" validate:"required,max=255"`
	Email       string         `json:"email"       validate:"required,email,max=255"`
	Phone       string         `json:"phone"       validate:"required,max=50"`
	Address     string         `json:"address"     validate:"required,max=1000"`
	DateOfBirth string         `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	CourseID    *uint          `json:"courseId"    validate:"omitempty,gt=0"`
	FormData    map[string]any `json:"formData"`
}

// EnrollmentUpdate carries the admin-editable fields; nil means unchanged.
type EnrollmentUpdate struct {
	StudentName *string        `json:"studentName" validate:"omitempty,min=1,max=255"`
	Email       *string        `json:"email"       validate:"omitempty,email,max=255"`
	Phone       *string        `json:"phone"       validate:"omitempty,max=50"`
	Address     *string        `json:"address"     validate:"omitempty,max=1000"`
	DateOfBirth *string        `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	FormData    map[string]any `json:"formData"`
}

// Requester identifies who is asking, for owner-or-admin checks.
type Requester struct {
	UserID uint
	Admin  bool
}

type EnrollmentService struct {
	enrollments *repositories.EnrollmentRepository
	courses     *repositories.CourseRepository
	disk        storage.Disk
	events      Notifier
}

func NewEnrollmentService(db *gorm.DB, disk storage.Disk, events Notifier) *EnrollmentService {
	if events == nil {
		events = nopNotifier{}
	}
	return &EnrollmentService{
		enrollments: repositories.NewEnrollmentRepository(db),
		courses:     repositories.NewCourseRepository(db),
		disk:        disk,
		events:      events,
	}
}

func pdfPath(id uint) string { return fmt.Sprintf("enrollments/%d.pdf", id) }

// Submit stores a PENDING enrollment, renders and stores its PDF, and
// announces it. userID is nil for anonymous submissions. The course, when
// given, must be ACTIVE.
func (s *EnrollmentService) Submit(ctx context.Context, userID *uint, in EnrollmentInput) (*models.Enrollment, error) {
	var course *models.Course
	if in.CourseID != nil {
		c, err := s.courses.FindActive(ctx, *in.CourseID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Course not found")
		}
		if err != nil {
			return nil, internal("Failed to submit enrollment", err)
		}
		course = &c
	}

	formData, err := json.Marshal(in.FormData)
	if err != nil {
		return nil, invalidArg("formData must be a JSON object")
	}

	e := &models.Enrollment{
		StudentName:   strings.TrimSpace(in.StudentName),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:         strings.TrimSpace(in.Phone),
		Address:       strings.TrimSpace(in.Address),
		DateOfBirth:   in.DateOfBirth,
		FormData:      datatypes.JSON(formData),
		CourseID:      in.CourseID,
		UserID:        userID,
		PaymentStatus: models.PaymentPending,
	}
	if err := s.enrollments.Create(ctx, e); err != nil {
		return nil, internal("Failed to submit enrollment", err)
	}
	e.Course = course

	log := logger.WithCtx(ctx).With("enrollment_id", e.ID)
	// A missing PDF is regenerated on demand, so storage trouble does not
	// fail the submission.
	if path, err := s.storePDF(ctx, e); err != nil {
		log.Error("enrollment: store pdf failed", "error", err)
	} else {
		e.PdfPath = &path
	}

	metrics.EnrollmentsSubmitted.Inc()
	log.Info("enrollment: submitted", "course_id", in.CourseID)

	ev := EnrollmentSubmitted{
		EnrollmentID: e.ID,
		StudentName:  e.StudentName,
		Email:        e.Email,
		CourseID:     e.CourseID,
		HasPDF:       e.PdfPath != nil,
	}
	if course != nil {
		ev.CourseName = course.Name
	}
	s.events.FireAsync(ctx, EventEnrollmentSubmitted, ev)
	return e, nil
}

func (s *EnrollmentService) storePDF(ctx context.Context, e *models.Enrollment) (string, error) {
	body, err := renderPDF(e)
	if err != nil {
		return "", err
	}
	path := pdfPath(e.ID)
	if err := s.disk.Put(ctx, path, body, "application/pdf"); err != nil {
		return "", err
	}
	if err := s.enrollments.Update(ctx, e.ID, map[string]any{"pdf_path": path}); err != nil {
		return "", err
	}
	return path, nil
}

func renderPDF(e *models.Enrollment) ([]byte, error) {
	form := pdf.EnrollmentForm{
		ID:            e.ID,
		StudentName:   e.StudentName,
		Email:         e.Email,
		Phone:         e.Phone,
		Address:       e.Address,
		DateOfBirth:   e.DateOfBirth,
		PaymentStatus: e.PaymentStatus,
		PaymentDate:   e.PaymentDate,
		SubmittedAt:   e.CreatedAt,
	}
	if e.Course != nil {
		form.CourseName = e.Course.Name
		form.CoursePrice = "$" + e.Course.Price.StringFixed(2)
	}
	if e.PaymentID != nil {
		form.PaymentID = *e.PaymentID
	}
	if e.PaymentAmount.Valid {
		form.PaymentAmount = "$" + e.PaymentAmount.Decimal.StringFixed(2)
	}
	if len(e.FormData) > 0 {
		if err := json.Unmarshal(e.FormData, &form.Extra); err != nil {
			return nil, fmt.Errorf("decode form data: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.RenderEnrollmentForm(&buf, form); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *EnrollmentService) find(ctx context.Context, id uint) (models.Enrollment, error) {
	e, err := s.enrollments.Find(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return e, notFound("Enrollment not found")
	}
	if err != nil {
		return e, internal("Failed to load enrollment", err)
	}
	return e, nil
}

// Get returns an enrollment visible to the requester.
func (s *EnrollmentService) Get(ctx context.Context, id uint, who Requester) (*models.Enrollment, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.Admin && !e.OwnedBy(who.UserID) {
		return nil, forbidden("Forbidden")
	}
	return &e, nil
}

func (s *EnrollmentService) ListForUser(ctx context.Context, userID uint) ([]models.Enrollment, error) {
	list, err := s.enrollments.ListForUser(ctx, userID)
	if err != nil {
		return nil, internal("Failed to load enrollments", err)
	}
	return list, nil
}

func (s *EnrollmentService) List(ctx context.Context, f repositories.EnrollmentFilter, p orm.Page) ([]models.Enrollment, orm.Pagination, error) {
	if f.Status != "" && !validPaymentStatus(f.Status) {
		return nil, orm.Pagination{}, invalidArg("Invalid status filter")
	}
	list, pg, err := s.enrollments.List(ctx, f, p)
	if err != nil {
		return nil, pg, internal("Failed to load enrollments", err)
	}
	return list, pg, nil
}

// Update edits contact and form fields. Payment fields are never touched
// here; see UpdateStatus.
func (s *EnrollmentService) Update(ctx context.Context, id uint, in EnrollmentUpdate) (*models.Enrollment, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}
	set("student_name", in.StudentName)
	set("phone", in.Phone)
	set("address", in.Address)
	set("date_of_birth", in.DateOfBirth)
	if in.Email != nil {
		fields["email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.FormData != nil {
		raw, err := json.Marshal(in.FormData)
		if err != nil {
			return nil, invalidArg("formData must be a JSON object")
		}
		fields["form_data"] = datatypes.JSON(raw)
	}

	if len(fields) > 0 {
		if err := s.enrollments.Update(ctx, id, fields); err != nil {
			return nil, internal("Failed to update enrollment", err)
		}
	}
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes the enrollment and its stored PDF.
func (s *EnrollmentService) Delete(ctx context.Context, id uint) error {
	e, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.enrollments.Delete(ctx, id); err != nil {
		return internal("Failed to delete enrollment", err)
	}
	if e.PdfPath != nil {
		if err := s.disk.Delete(ctx, *e.PdfPath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.WithCtx(ctx).Warn("enrollment: delete pdf failed", "enrollment_id", id, "error", err)
		}
	}
	return nil
}

// UpdateStatus performs a manual PENDING→COMPLETED or PENDING→FAILED
// transition. Completing stamps paymentDate and, if unset, the course price.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id uint, status, paymentID string) (*models.Enrollment, error) {
	if !validPaymentStatus(status) || status == models.PaymentPending {
		return nil, invalidArg("Status must be COMPLETED or FAILED")
	}
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.CanTransition(status) {
		return nil, invalidState(fmt.Sprintf("Cannot change status from %s to %s", e.PaymentStatus, status))
	}

	var ok bool
	switch status {
	case models.PaymentCompleted:
		amount := e.PaymentAmount.Decimal
		if !e.PaymentAmount.Valid && e.Course != nil {
			amount = e.Course.Price
		}
		if paymentID == "" {
			paymentID = fmt.Sprintf("manual-%d", e.ID)
		}
		ok, err = s.enrollments.Complete(ctx, e.ID, paymentID, amount, nowUTC())
	case models.PaymentFailed:
		ok, err = s.enrollments.Fail(ctx, e.ID, paymentID)
	}
	if err != nil {
		return nil, internal("Failed to update status", err)
	}
	if !ok {
		return nil, invalidState("Enrollment is no longer pending")
	}

	e, err = s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PDF returns the stored form, regenerating it when the object is missing.
func (s *EnrollmentService) PDF(ctx context.Context, id uint, who Requester) ([]byte, error) {
	e, err := s.Get(ctx, id, who)
	if err != nil {
		return nil, err
	}
	if e.PdfPath != nil {
		body, err := s.disk.Get(ctx, *e.PdfPath)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			logger.WithCtx(ctx).Warn("enrollment: read stored pdf failed", "enrollment_id", id, "error", err)
		}
	}
	body, err := renderPDF(e)
	if err != nil {
		return nil, internal("Failed to render PDF", err)
	}
	return body, nil
}

var exportHeaders = []string{
	"ID", "Student", "Email", "Phone", "Address", "Date of birth", "Course",
	"Payment status", "Payment ID", "Amount", "Paid at", "Submitted at",
}

// Export renders every matching enrollment as an XLSX workbook.
func (s *EnrollmentService) Export(ctx context.Context, f repositories.EnrollmentFilter) ([]byte, error) {
	list, err := s.enrollments.All(ctx, f)
	if err != nil {
		return nil, internal("Failed to export enrollments", err)
	}

	rows := make([][]any, 0, len(list))
	for _, e := range list {
		course, payID, amount := "", "", ""
		if e.Course != nil {
			course = e.Course.Name
		}
		if e.PaymentID != nil {
			payID = *e.PaymentID
		}
		if e.PaymentAmount.Valid {
			amount = e.PaymentAmount.Decimal.StringFixed(2)
		}
		rows = append(rows, []any{
			e.ID, e.StudentName, e.Email, e.Phone, e.Address, e.DateOfBirth, course,
			e.PaymentStatus, payID, amount, e.PaymentDate, e.CreatedAt,
		})
	}

	wb := export.New()
	if err := wb.Sheet("Enrollments", exportHeaders, rows); err != nil {
		return nil, internal("Failed to export enrollments", err)
	}
	out, err := wb.Bytes()
	if err != nil {
		return nil, internal("Failed to export enrollments", err)
	}
	return out, nil
}

func validPaymentStatus(s string) bool {
	switch s {
	case models.PaymentPending, models.PaymentCompleted, models.PaymentFailed:
		return true
	}
	return false
}
