package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// topicPattern accepts names valid as a Kafka topic, a NATS subject and a
// Redis stream key at the same time.
var topicPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,249}$`)

// Validator wraps go-playground/validator with the custom tags used by the
// configuration structs.
type Validator struct {
	validator *validator.Validate
	logger    *zap.Logger
}

// NewValidator creates a validator with the custom tags registered
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{
		validator: validator.New(),
		logger:    logger,
	}
	v.registerCustomValidators()
	return v
}

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	validationErrs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrs = append(validationErrs, ValidationError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: v.getErrorMessage(fe),
		})
	}
	v.logger.Debug("Struct validation failed", zap.Int("errors", len(validationErrs)))
	return validationErrs
}

func (v *Validator) registerCustomValidators() {
	_ = v.validator.RegisterValidation("broker_addr", func(fl validator.FieldLevel) bool {
		return IsBrokerAddress(fl.Field().String())
	})
	_ = v.validator.RegisterValidation("topic_name", func(fl validator.FieldLevel) bool {
		return topicPattern.MatchString(fl.Field().String())
	})
}

// IsBrokerAddress accepts host:port or a URL with a host, such as
// nats://host:4222 or redis://host:6379.
func IsBrokerAddress(addr string) bool {
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		return err == nil && u.Hostname() != ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}

func (v *Validator) getErrorMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "broker_addr":
		return fmt.Sprintf("%s must be host:port or a broker URL, got %q", field, fe.Value())
	case "topic_name":
		return fmt.Sprintf("%s may only contain letters, digits, '.', '_' and '-'", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed on the '%s' tag", field, fe.Tag())
	}
}
