package auth

import (
	"cognito-backend/dao"
	"cognito-backend/model"
	"cognito-backend/request"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// UserRegister 注册新用户，密码以bcrypt哈希存储
func UserRegister(req request.UserRegisterRequest) (*model.User, error) {
	existing, err := dao.GetUserByUsername(req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %v", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("username %s already taken", req.Username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %v", err)
	}

	role := req.Role
	if role == "" {
		role = model.RoleViewer
	}

	user := &model.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := dao.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %v", err)
	}
	return user, nil
}

// UserLogin 校验用户名与密码
func UserLogin(req request.UserLoginRequest) (*model.User, error) {
	user, err := dao.GetUserByUsername(req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %v", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", req.Username)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid password")
	}
	return user, nil
}
