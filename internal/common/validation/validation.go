package validation

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"inphrone-backend/internal/common/errors"
)

const (
	MaxQuestionLength = 280
	MaxOptionLength   = 100
	MinOptions        = 2
	MaxOptions        = 4

	MaxOpinionTitleLength   = 200
	MaxOpinionContentLength = 5000
)

var couponCodeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{2,31}$`)

// Register installs the custom rules on gin's validator engine
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return RegisterOn(v)
}

func RegisterOn(v *validator.Validate) error {
	if err := v.RegisterValidation("notblank", validateNotBlank); err != nil {
		return err
	}
	if err := v.RegisterValidation("coupon_code", validateCouponCode); err != nil {
		return err
	}
	return v.RegisterValidation("poll_options", validatePollOptions)
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateCouponCode(fl validator.FieldLevel) bool {
	return couponCodeRegex.MatchString(fl.Field().String())
}

func validatePollOptions(fl validator.FieldLevel) bool {
	options, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	return ValidateOptions(options) == nil
}

// ValidateQuestion checks a poll question text
func ValidateQuestion(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.NewValidationError("question", "cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxQuestionLength {
		return errors.NewValidationError("question", fmt.Sprintf("cannot exceed %d characters", MaxQuestionLength))
	}
	return nil
}

// ValidateOptions requires 2..4 distinct non-empty options
func ValidateOptions(options []string) error {
	if len(options) < MinOptions || len(options) > MaxOptions {
		return errors.NewValidationError("options", fmt.Sprintf("must have between %d and %d options", MinOptions, MaxOptions))
	}
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return errors.NewValidationError("options", "option cannot be empty")
		}
		if utf8.RuneCountInString(opt) > MaxOptionLength {
			return errors.NewValidationError("options", fmt.Sprintf("option cannot exceed %d characters", MaxOptionLength))
		}
		key := strings.ToLower(opt)
		if _, dup := seen[key]; dup {
			return errors.NewValidationError("options", "options must be distinct")
		}
		seen[key] = struct{}{}
	}
	return nil
}

// TrimOptions returns options with surrounding whitespace removed
func TrimOptions(options []string) []string {
	out := make([]string, len(options))
	for i, opt := range options {
		out[i] = strings.TrimSpace(opt)
	}
	return out
}

func ValidateOptionIndex(index, count int) error {
	if index < 0 || index >= count {
		return errors.NewValidationError("option", fmt.Sprintf("must be between 0 and %d", count-1))
	}
	return nil
}

// FromBinding converts a gin binding error into a VALIDATION_ERROR
func FromBinding(err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		appErr := errors.NewValidationError(strings.ToLower(first.Field()), describe(first))
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = describe(fe)
		}
		return appErr.WithDetail("fields", fields)
	}
	return errors.Wrap(err, errors.ErrCodeBadRequest, "Invalid request body")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "notblank":
		return "cannot be blank"
	case "coupon_code":
		return "must be 3-32 uppercase letters, digits, '-' or '_'"
	case "poll_options":
		return fmt.Sprintf("must have %d-%d distinct non-empty options", MinOptions, MaxOptions)
	default:
		return "failed on " + fe.Tag()
	}
}
