package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxCodeLength   = 8
	MaxNodeIDLength = 64
	MaxKeepBranches = 256
)

func init() {
	validate = validator.New()
}

// TraceRequest is an operator trace request as received by the CLI or a caller
type TraceRequest struct {
	Start     string `json:"start" validate:"required,max=64"`
	Direction string `json:"direction" validate:"required,oneof=upstream downstream up down amont aval"`
	Category  string `json:"category" validate:"omitempty,max=8,alphanum"`
	Function  string `json:"function" validate:"omitempty,max=8,alphanum"`
}

// VisitRequest is an operator visit decision
type VisitRequest struct {
	Node      string   `json:"node" validate:"required,max=64"`
	Pollution bool     `json:"pollution"`
	Keep      []string `json:"keep" validate:"omitempty,max=256,dive,required"`
}

// DesignateRequest selects an entity and its downstream network
type DesignateRequest struct {
	Entity  string `json:"entity" validate:"required,max=64"`
	Network string `json:"network" validate:"omitempty,oneof=01 02 03"`
}

// ValidateTraceRequest validates a trace request
func ValidateTraceRequest(req *TraceRequest) error {
	if req == nil {
		return errors.New("trace request cannot be nil")
	}
	req.Direction = strings.ToLower(strings.TrimSpace(req.Direction))
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateVisitRequest validates a visit request
func ValidateVisitRequest(req *VisitRequest) error {
	if req == nil {
		return errors.New("visit request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	if !req.Pollution && len(req.Keep) > 0 {
		return fmt.Errorf("Keep: branches cannot be kept when no pollution was found")
	}
	return nil
}

// ValidateDesignateRequest validates a designate request
func ValidateDesignateRequest(req *DesignateRequest) error {
	if req == nil {
		return errors.New("designate request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateCode validates a single attribute code used as a filter
func ValidateCode(field, value string) error {
	if err := validate.Var(value, "omitempty,max=8,alphanum"); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Tag() {
			case "max":
				return fmt.Errorf("%s: must not exceed %d characters", field, MaxCodeLength)
			case "alphanum":
				return fmt.Errorf("%s: %q contains invalid characters (only alphanumeric allowed)", field, value)
			}
		}
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}

	e := validationErrs[0]
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "max":
		return fmt.Errorf("%s: must not exceed %s", field, e.Param())
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s]", field, e.Param())
	case "alphanum":
		return fmt.Errorf("%s: contains invalid characters (only alphanumeric allowed)", field)
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}
