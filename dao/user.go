package dao

import (
	"cognito-backend/model"
	"errors"

	"gorm.io/gorm"
)

func CreateUser(user *model.User) error {
	return DB.Create(user).Error
}

func GetUserByUsername(username string) (*model.User, error) {
	var user model.User
	if err := DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
