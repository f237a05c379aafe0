package service

import "github.com/golang-jwt/jwt/v5"

// UserJWTClaims 用户 JWT 载荷（身份由上游签发，本服务只解析）
type UserJWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
