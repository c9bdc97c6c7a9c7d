package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepo provides query access to users.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreate looks up a user by email, creating a Pending-status row with
// no plan if none exists yet. External identity providers authenticate the
// email; this is the first point the control plane sees that identity.
func (r *UserRepo) GetOrCreate(ctx context.Context, email string, name *string) (*User, error) {
	u, err := r.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	u = &User{Email: email, Name: name}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]User, error) {
	var users []User
	err := r.db.WithContext(ctx).Order("created_at").Find(&users).Error
	return users, err
}

func (r *UserRepo) SetStatus(ctx context.Context, id uuid.UUID, status UserStatus) error {
	return r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("status", status).Error
}

func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role UserRole) error {
	return r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("role", role).Error
}

func (r *UserRepo) SetPlan(ctx context.Context, id uuid.UUID, planID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("plan_id", planID).Error
}
