package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/pkg/orm"
)

type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{db: tx}
}

func (r *CourseRepository) Find(ctx context.Context, id uint) (models.Course, error) {
	var c models.Course
	err := r.db.WithContext(ctx).First(&c, id).Error
	return c, err
}

// FindActive returns the course only when it is ACTIVE.
func (r *CourseRepository) FindActive(ctx context.Context, id uint) (models.Course, error) {
	var c models.Course
	err := r.db.WithContext(ctx).Where("status = ?", models.CourseActive).First(&c, id).Error
	return c, err
}

// FindMany loads courses by id, keyed by id.
func (r *CourseRepository) FindMany(ctx context.Context, ids []uint) (map[uint]models.Course, error) {
	out := make(map[uint]models.Course, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []models.Course
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, c := range list {
		out[c.ID] = c
	}
	return out, nil
}

// List pages through courses; status "" means all.
func (r *CourseRepository) List(ctx context.Context, status string, p orm.Page) ([]models.Course, orm.Pagination, error) {
	q := r.db.WithContext(ctx).Model(&models.Course{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var courses []models.Course
	pg, err := orm.Paginate(q.Order("name ASC, id ASC"), p, &courses)
	return courses, pg, err
}

func (r *CourseRepository) Create(ctx context.Context, c *models.Course) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CourseRepository) Save(ctx context.Context, c *models.Course) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// Delete removes the course and every cart line pointing at it.
func (r *CourseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Course{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CountByStatus returns course counts keyed by status.
func (r *CourseRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&models.Course{}).
		Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error
	out := map[string]int64{}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, err
}
