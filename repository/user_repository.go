package repository

import (
	"context"
	"errors"
	"fmt"

	"Tunora/model"

	"gorm.io/gorm"
)

// UserRepository is the read-only view of accounts owned by the account service.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
	// GetFollowerIDs lists the accounts following an artist.
	GetFollowerIDs(ctx context.Context, artistID int64) ([]int64, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GORM 用户仓库
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *gormUserRepository) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	return r.first(ctx, "referral_code = ?", code)
}

// first returns nil, nil when no account matches.
func (r *gormUserRepository) first(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var user model.User
	err := conn(ctx, r.db).Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user (%s %v): %w", query, arg, err)
	}
	return &user, nil
}

func (r *gormUserRepository) GetFollowerIDs(ctx context.Context, artistID int64) ([]int64, error) {
	var ids []int64
	err := conn(ctx, r.db).Model(&model.UserFollow{}).
		Where("artist_id = ?", artistID).
		Order("follower_id").
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list followers of %d: %w", artistID, err)
	}
	return ids, nil
}
