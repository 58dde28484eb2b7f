package model

import "time"

const (
	RoleAdmin   = "admin"
	RoleCreator = "creator"
	RoleViewer  = "viewer"
)

type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:32;not null;default:creator" json:"role"`
}

func (User) TableName() string {
	return "users"
}
