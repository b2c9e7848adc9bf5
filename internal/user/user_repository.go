package user

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"gochat/internal/common"
	"gochat/internal/dbmysql"
)

//go:generate mockgen -source=user_repository.go -destination=mock_user_repository.go -package=user

// UserRepository reads the account rows chat needs for display labels.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID uint64) (*dbmysql.User, error)
	HandlesByIDs(ctx context.Context, userIDs []uint64) (map[uint64]string, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetUserByID(ctx context.Context, userID uint64) (*dbmysql.User, error) {
	var user dbmysql.User
	err := r.db.WithContext(ctx).Where("user_id = ? AND status = ?", userID, "active").First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return &user, nil
}

func (r *userRepository) HandlesByIDs(ctx context.Context, userIDs []uint64) (map[uint64]string, error) {
	out := make(map[uint64]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var users []dbmysql.User
	err := r.db.WithContext(ctx).
		Select("user_id", "handle").
		Where("user_id IN ?", userIDs).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("load handles: %w", err)
	}
	for _, u := range users {
		out[u.UserID] = u.Handle
	}
	return out, nil
}

// Directory resolves user handles for forward labels and caches them for the
// life of the process; handles are immutable in the account service.
type Directory struct {
	repo  UserRepository
	mu    sync.RWMutex
	cache map[uint64]string
}

// NewDirectory returns a Directory over repo. A nil repo resolves nothing.
func NewDirectory(repo UserRepository) *Directory {
	return &Directory{repo: repo, cache: make(map[uint64]string)}
}

func (d *Directory) Handle(ctx context.Context, userID uint64) (string, error) {
	d.mu.RLock()
	handle, ok := d.cache[userID]
	d.mu.RUnlock()
	if ok {
		return handle, nil
	}
	if d.repo == nil {
		return "", common.ErrNotFound
	}

	u, err := d.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.cache[userID] = u.Handle
	d.mu.Unlock()
	return u.Handle, nil
}
