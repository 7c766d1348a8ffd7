package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// Custom validation tags
const (
	TagGrievanceStatus = "grievance_status"
	TagLatitude        = "latitude"
	TagLongitude       = "longitude"
)

// SetupValidator configures gin's validator: field names come from the json
// (or form) tag, and the grievance tags are registered.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return registerValidations(v)
}

func registerValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	if err := v.RegisterValidation(TagGrievanceStatus, func(fl validator.FieldLevel) bool {
		_, ok := grievance.ParseStatus(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation(TagLatitude, coordinateInRange(90)); err != nil {
		return err
	}
	return v.RegisterValidation(TagLongitude, coordinateInRange(180))
}

// coordinateInRange accepts a blank string or a decimal within [-limit, limit]
func coordinateInRange(limit int64) validator.Func {
	max := decimal.NewFromInt(limit)
	min := max.Neg()
	return func(fl validator.FieldLevel) bool {
		raw := strings.TrimSpace(fl.Field().String())
		if raw == "" {
			return true
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return false
		}
		return !d.LessThan(min) && !d.GreaterThan(max)
	}
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 validation response
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, c.GetString(RequestIDKey)))
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case TagGrievanceStatus:
		return "Must be one of: Pending, In Progress, Resolved, Rejected"
	case TagLatitude:
		return "Latitude must be between -90 and 90"
	case TagLongitude:
		return "Longitude must be between -180 and 180"
	default:
		return "Invalid value"
	}
}
