package settings

import "github.com/taskhub/taskhub-api/internal/pkg/apperror"

var (
	ErrInvalidSetting = apperror.Validation("INVALID_SETTING", "Invalid setting value")
	ErrInvalidAmount  = apperror.Validation("INVALID_AMOUNT", "Valid amount parameter is required")
)
