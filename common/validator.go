package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// maxbytes bounds the UTF-8 encoded length, which is what bcrypt limits.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ValidateAndDecode decodes a JSON body into payload and runs struct validation on it.
func ValidateAndDecode(r *http.Request, payload interface{}) *AppError {
	if r.Body == nil {
		return NewAppError(http.StatusBadRequest, "Request body is required", nil)
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(payload); err != nil {
		return NewAppError(http.StatusBadRequest, "Invalid request body", err)
	}
	return ValidateStruct(payload)
}

// ValidateStruct validates an already-populated payload.
func ValidateStruct(payload interface{}) *AppError {
	if err := validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewAppError(http.StatusBadRequest, formatValidationErrors(validationErrors), err)
		}
		return NewAppError(http.StatusBadRequest, "Invalid request", err)
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email")
		case "min":
			msgs = append(msgs, fe.Field()+" must be at least "+fe.Param()+" characters")
		case "max":
			msgs = append(msgs, fe.Field()+" must be at most "+fe.Param()+" characters")
		case "maxbytes":
			msgs = append(msgs, fe.Field()+" must be at most "+fe.Param()+" bytes")
		case "uuid":
			msgs = append(msgs, fe.Field()+" must be a valid UUID")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
