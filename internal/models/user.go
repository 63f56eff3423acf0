package models

import (
	"time"
)

// User 作者资料，由账号系统维护，这里只读
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"not null" json:"username"`
	Avatar    string    `gorm:"default:🌱" json:"avatar"` // emoji 头像
	Bio       string    `gorm:"size:200" json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
