package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/pkg/orm"
)

type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: tx}
}

func (r *EnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *EnrollmentRepository) Find(ctx context.Context, id uint) (models.Enrollment, error) {
	var e models.Enrollment
	err := r.db.WithContext(ctx).Preload("Course").First(&e, id).Error
	return e, err
}

func (r *EnrollmentRepository) ListForUser(ctx context.Context, userID uint) ([]models.Enrollment, error) {
	var list []models.Enrollment
	err := r.db.WithContext(ctx).Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	return list, err
}

// EnrollmentFilter narrows admin listings and exports.
type EnrollmentFilter struct {
	Status   string
	CourseID uint
	Search   string
	From, To *time.Time
}

func (r *EnrollmentRepository) filtered(ctx context.Context, f EnrollmentFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Enrollment{})
	if f.Status != "" {
		q = q.Where("payment_status = ?", f.Status)
	}
	if f.CourseID != 0 {
		q = q.Where("course_id = ?", f.CourseID)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(student_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	return q
}

func (r *EnrollmentRepository) List(ctx context.Context, f EnrollmentFilter, p orm.Page) ([]models.Enrollment, orm.Pagination, error) {
	var list []models.Enrollment
	pg, err := orm.Paginate(r.filtered(ctx, f).Preload("Course").Order("created_at DESC, id DESC"), p, &list)
	return list, pg, err
}

// All returns every enrollment matching f, oldest first (exports).
func (r *EnrollmentRepository) All(ctx context.Context, f EnrollmentFilter) ([]models.Enrollment, error) {
	var list []models.Enrollment
	err := r.filtered(ctx, f).Preload("Course").Order("created_at ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *EnrollmentRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Enrollment{}).Where("id = ?", id).Updates(fields).Error
}

func (r *EnrollmentRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Enrollment{}, id)
	return res.RowsAffected > 0, res.Error
}

// DeletePending removes the user's PENDING enrollments for the courses.
func (r *EnrollmentRepository) DeletePending(ctx context.Context, userID uint, courseIDs []uint) (int64, error) {
	if len(courseIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id IN ? AND payment_status = ?", userID, courseIDs, models.PaymentPending).
		Delete(&models.Enrollment{})
	return res.RowsAffected, res.Error
}

// LatestPending returns the most recent PENDING enrollment for the pair.
func (r *EnrollmentRepository) LatestPending(ctx context.Context, userID, courseID uint) (models.Enrollment, error) {
	var e models.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND payment_status = ?", userID, courseID, models.PaymentPending).
		Order("created_at DESC, id DESC").
		First(&e).Error
	return e, err
}

// Complete moves a PENDING enrollment to COMPLETED. It reports false when
// the row was no longer PENDING.
func (r *EnrollmentRepository) Complete(ctx context.Context, id uint, paymentID string, amount decimal.Decimal, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentPending).
		Updates(map[string]any{
			"payment_status": models.PaymentCompleted,
			"payment_id":     paymentID,
			"payment_amount": amount,
			"payment_date":   at,
		})
	return res.RowsAffected == 1, res.Error
}

// Fail moves a PENDING enrollment to FAILED under the same guard.
func (r *EnrollmentRepository) Fail(ctx context.Context, id uint, paymentID string) (bool, error) {
	updates := map[string]any{"payment_status": models.PaymentFailed}
	if paymentID != "" {
		updates["payment_id"] = paymentID
	}
	res := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentPending).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// StatusCounts returns enrollment counts keyed by payment status.
func (r *EnrollmentRepository) StatusCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		PaymentStatus string
		N             int64
	}
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Select("payment_status, COUNT(*) AS n").Group("payment_status").Scan(&rows).Error
	out := map[string]int64{}
	for _, row := range rows {
		out[row.PaymentStatus] = row.N
	}
	return out, err
}

// Revenue sums payment_amount over COMPLETED enrollments.
func (r *EnrollmentRepository) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("payment_status = ?", models.PaymentCompleted).
		Select("COALESCE(SUM(payment_amount), 0)").
		Row().Scan(&total)
	return total, err
}
