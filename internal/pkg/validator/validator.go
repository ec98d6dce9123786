package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

var enumTags = map[string][]string{
	"payment_method":  {"paypal", "bank_transfer"},
	"withdraw_method": {"paypal", "bank_transfer"},
	"escrow_action":   {"release_to_worker", "refund_to_employer", "partial_refund"},
	"booking_type":    {"hourly", "daily", "weekly", "monthly"},
	"setting_key": {
		"payment_fees_enabled",
		"platform_fee_percentage",
		"insurance_fund_percentage",
		"escrow_cooling_period_days",
		"minimum_deposit_usd",
		"minimum_withdrawal_usd",
		"bank_transfer_info",
	},
}

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	for tag, values := range enumTags {
		allowed := values
		validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			for _, a := range allowed {
				if v == a {
					return true
				}
			}
			return false
		})
	}
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range validationErrors {
		field := err.Field()
		if allowed, ok := enumTags[err.Tag()]; ok {
			errors[field] = "Invalid value. Must be one of: " + strings.Join(allowed, ", ")
			continue
		}
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "uuid":
			errors[field] = "Invalid UUID"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
