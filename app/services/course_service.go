package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/orm"
)

// CourseInput is the admin create/update payload. On update nil fields are
// left unchanged.
type CourseInput struct {
	Name        *string          `json:"name"        validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Duration    *string          `json:"duration"    validate:"omitempty,max=100"`
	Status      *string          `json:"status"      validate:"omitempty,oneof=DRAFT ACTIVE"`
}

type CourseService struct {
	courses *repositories.CourseRepository
}

func NewCourseService(db *gorm.DB) *CourseService {
	return &CourseService{courses: repositories.NewCourseRepository(db)}
}

// ListActive is the public catalogue.
func (s *CourseService) ListActive(ctx context.Context, p orm.Page) ([]models.Course, orm.Pagination, error) {
	return s.List(ctx, models.CourseActive, p)
}

// List pages through courses of the given status; "" lists all.
func (s *CourseService) List(ctx context.Context, status string, p orm.Page) ([]models.Course, orm.Pagination, error) {
	if status != "" && status != models.CourseActive && status != models.CourseDraft {
		return nil, orm.Pagination{}, invalidArg("Invalid status filter")
	}
	list, pg, err := s.courses.List(ctx, status, p)
	if err != nil {
		return nil, pg, internal("Failed to load courses", err)
	}
	return list, pg, nil
}

// GetActive hides drafts from the public.
func (s *CourseService) GetActive(ctx context.Context, id uint) (*models.Course, error) {
	c, err := s.courses.FindActive(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Course not found")
	}
	if err != nil {
		return nil, internal("Failed to load course", err)
	}
	return &c, nil
}

func (s *CourseService) Get(ctx context.Context, id uint) (*models.Course, error) {
	c, err := s.courses.Find(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Course not found")
	}
	if err != nil {
		return nil, internal("Failed to load course", err)
	}
	return &c, nil
}

func (s *CourseService) Create(ctx context.Context, in CourseInput) (*models.Course, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, invalidArg("Name is required")
	}
	c := models.Course{Status: models.CourseDraft}
	if err := apply(&c, in); err != nil {
		return nil, err
	}
	if err := s.courses.Create(ctx, &c); err != nil {
		return nil, internal("Failed to create course", err)
	}
	logger.WithCtx(ctx).Info("course: created", "course_id", c.ID)
	return &c, nil
}

func (s *CourseService) Update(ctx context.Context, id uint, in CourseInput) (*models.Course, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(c, in); err != nil {
		return nil, err
	}
	if err := s.courses.Save(ctx, c); err != nil {
		return nil, internal("Failed to update course", err)
	}
	return c, nil
}

// SetStatus publishes or unpublishes a course.
func (s *CourseService) SetStatus(ctx context.Context, id uint, status string) (*models.Course, error) {
	if status != models.CourseActive && status != models.CourseDraft {
		return nil, invalidArg("Status must be DRAFT or ACTIVE")
	}
	return s.Update(ctx, id, CourseInput{Status: &status})
}

// Delete removes the course and drops it from every cart. Enrollments keep
// their row with the course link cleared.
func (s *CourseService) Delete(ctx context.Context, id uint) error {
	err := s.courses.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("Course not found")
	}
	if err != nil {
		return internal("Failed to delete course", err)
	}
	logger.WithCtx(ctx).Info("course: deleted", "course_id", id)
	return nil
}

func apply(c *models.Course, in CourseInput) error {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return invalidArg("Price must not be negative")
		}
		c.Price = in.Price.Round(2)
	}
	if in.Duration != nil {
		c.Duration = strings.TrimSpace(*in.Duration)
	}
	if in.Status != nil {
		c.Status = *in.Status
	}
	return nil
}
