package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/orm"
)

// Stats is the dashboard summary.
type Stats struct {
	Users          int64                        `json:"users"`
	Admins         int64                        `json:"admins"`
	Courses        map[string]int64             `json:"courses"`
	Enrollments    map[string]int64             `json:"enrollments"`
	Revenue        decimal.Decimal              `json:"revenue"`
	RecentPayments []models.PaymentConfirmation `json:"recentPayments"`
}

type AdminService struct {
	users         *repositories.UserRepository
	courses       *repositories.CourseRepository
	enrollments   *repositories.EnrollmentRepository
	confirmations *repositories.ConfirmationRepository
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{
		users:         repositories.NewUserRepository(db),
		courses:       repositories.NewCourseRepository(db),
		enrollments:   repositories.NewEnrollmentRepository(db),
		confirmations: repositories.NewConfirmationRepository(db),
	}
}

func (s *AdminService) Users(ctx context.Context, f repositories.UserFilter, p orm.Page) ([]models.User, orm.Pagination, error) {
	if f.Role != "" && f.Role != models.RoleAdmin && f.Role != models.RoleUser {
		return nil, orm.Pagination{}, invalidArg("Invalid role filter")
	}
	list, pg, err := s.users.List(ctx, f, p)
	if err != nil {
		return nil, pg, internal("Failed to load users", err)
	}
	return list, pg, nil
}

func (s *AdminService) liveUser(ctx context.Context, id uint) (models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && u.IsDeleted) {
		return u, notFound("User not found")
	}
	if err != nil {
		return u, internal("Failed to load user", err)
	}
	return u, nil
}

// SetRole changes a user's role. Admins cannot demote themselves.
func (s *AdminService) SetRole(ctx context.Context, actorID, id uint, role string) (*models.User, error) {
	if role != models.RoleAdmin && role != models.RoleUser {
		return nil, invalidArg("Role must be ADMIN or USER")
	}
	if actorID == id && role != models.RoleAdmin {
		return nil, invalidState("You cannot remove your own admin role")
	}
	u, err := s.liveUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, id, map[string]any{"role": role}); err != nil {
		return nil, internal("Failed to update role", err)
	}
	u.Role = role
	logger.WithCtx(ctx).Info("admin: role changed", "user_id", id, "role", role, "by", actorID)
	return &u, nil
}

// DeleteUser soft-deletes an account; its tokens stop working at once.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, id uint) error {
	if actorID == id {
		return invalidState("You cannot delete your own account")
	}
	if _, err := s.liveUser(ctx, id); err != nil {
		return err
	}
	if err := s.users.Update(ctx, id, map[string]any{"is_deleted": true}); err != nil {
		return internal("Failed to delete user", err)
	}
	logger.WithCtx(ctx).Info("admin: user deleted", "user_id", id, "by", actorID)
	return nil
}

// Stats collects the dashboard counters.
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.Users, err = s.users.Count(ctx, ""); err != nil {
		return nil, internal("Failed to load stats", err)
	}
	if st.Admins, err = s.users.Count(ctx, models.RoleAdmin); err != nil {
		return nil, internal("Failed to load stats", err)
	}
	if st.Courses, err = s.courses.CountByStatus(ctx); err != nil {
		return nil, internal("Failed to load stats", err)
	}
	if st.Enrollments, err = s.enrollments.StatusCounts(ctx); err != nil {
		return nil, internal("Failed to load stats", err)
	}
	if st.Revenue, err = s.enrollments.Revenue(ctx); err != nil {
		return nil, internal("Failed to load stats", err)
	}
	if st.RecentPayments, err = s.confirmations.Recent(ctx, 10); err != nil {
		return nil, internal("Failed to load stats", err)
	}
	return &st, nil
}
