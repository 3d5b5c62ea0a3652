package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/pkg/orm"
)

// UserRepository handles database operations for User.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindActiveByEmail looks up a non-deleted user by e-mail.
func (r *UserRepository) FindActiveByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND is_deleted = ?", strings.ToLower(email), false).
		First(&u).Error
	return u, err
}

// FindByID looks up a user by primary key, deleted or not.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	return u, err
}

// Create persists a new user record.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(u.Email)
	return r.db.WithContext(ctx).Create(u).Error
}

// UpdatePassword replaces the stored hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash).Error
}

// Update writes the given columns.
func (r *UserRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
}

// UserFilter narrows admin listings.
type UserFilter struct {
	Search         string
	Role           string
	IncludeDeleted bool
}

// List returns users newest first.
func (r *UserRepository) List(ctx context.Context, f UserFilter, p orm.Page) ([]models.User, orm.Pagination, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR email LIKE ?", like, like)
	}
	var users []models.User
	pg, err := orm.Paginate(q.Order("id DESC"), p, &users)
	return users, pg, err
}

// Count returns non-deleted users, optionally by role.
func (r *UserRepository) Count(ctx context.Context, role string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("is_deleted = ?", false)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}
