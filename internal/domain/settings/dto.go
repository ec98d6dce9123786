package settings

import "encoding/json"

// UpdateRequest is the body of PUT /admin/wallet/settings
type UpdateRequest struct {
	Key   string          `json:"key" validate:"required,setting_key"`
	Value json.RawMessage `json:"value" validate:"required"`
}
