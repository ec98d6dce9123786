package user

import "github.com/taskhub/taskhub-api/internal/pkg/apperror"

var (
	ErrUserNotFound       = apperror.NotFound("USER_NOT_FOUND", "User not found")
	ErrEmailAlreadyExists = apperror.Conflict("EMAIL_EXISTS", "Email already exists")
)
