package dbmysql

import (
	"time"

	"gorm.io/gorm"
)

// User is owned by the account service; chat only reads handles from it.
type User struct {
	UserID    uint64         `gorm:"primaryKey;column:user_id;autoIncrement" json:"user_id"`
	Handle    string         `gorm:"column:handle;uniqueIndex;size:50;not null" json:"handle"`
	Status    string         `gorm:"column:status;size:16;default:'active'" json:"status"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
