package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidArgument is wrapped by every input validation failure.
var ErrInvalidArgument = errors.New("catalog: invalid argument")

var (
	languagePattern = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)
	regionPattern   = regexp.MustCompile(`^[A-Z]{2}$`)
)

// Validator wraps go-playground/validator with the catalog's custom rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the tmdb_language and tmdb_region tags registered.
func NewValidator() (*Validator, error) {
	v := validator.New()

	if err := v.RegisterValidation("tmdb_language", validateLanguage); err != nil {
		return nil, fmt.Errorf("register tmdb_language: %w", err)
	}
	if err := v.RegisterValidation("tmdb_region", validateRegion); err != nil {
		return nil, fmt.Errorf("register tmdb_region: %w", err)
	}
	return &Validator{validate: v}, nil
}

var (
	defaultValidatorOnce sync.Once
	defaultValidator     *Validator
)

func sharedValidator() *Validator {
	defaultValidatorOnce.Do(func() {
		v, err := NewValidator()
		if err != nil {
			panic(err)
		}
		defaultValidator = v
	})
	return defaultValidator
}

// Validate checks the struct tags of i.
func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// NewValidationError converts go-playground/validator errors into a ValidationError.
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fieldErrors := make([]FieldError, 0, len(errs))
	for _, err := range errs {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   err.Field(),
			Message: errorMessage(err),
			Value:   fmt.Sprintf("%v", err.Value()),
		})
	}
	return &ValidationError{Errors: fieldErrors}
}

func (ve *ValidationError) Error() string {
	switch len(ve.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s", ve.Errors[0].Message)
	default:
		return fmt.Sprintf("validation failed: %d errors", len(ve.Errors))
	}
}

// Unwrap lets errors.Is match ErrInvalidArgument.
func (ve *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must be within range", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "tmdb_language":
		return fmt.Sprintf("%s must look like en-US", fe.Field())
	case "tmdb_region":
		return fmt.Sprintf("%s must be a two-letter upper-case country code", fe.Field())
	default:
		return fmt.Sprintf("%s failed validation", fe.Field())
	}
}

func validateLanguage(fl validator.FieldLevel) bool {
	return languagePattern.MatchString(fl.Field().String())
}

func validateRegion(fl validator.FieldLevel) bool {
	return regionPattern.MatchString(fl.Field().String())
}

// Validation shapes. Fields are filled after defaults are applied.

type movieIDInput struct {
	MovieID  int    `validate:"gt=0"`
	Language string `validate:"tmdb_language"`
}

type listInput struct {
	Page     int    `validate:"min=1,max=500"`
	Language string `validate:"tmdb_language"`
	Region   string `validate:"omitempty,tmdb_region"`
}

type pagedMovieInput struct {
	MovieID  int    `validate:"gt=0"`
	Page     int    `validate:"min=1,max=500"`
	Language string `validate:"tmdb_language"`
}

type searchInput struct {
	Query    string `validate:"required,max=100"`
	Page     int    `validate:"min=1,max=500"`
	Language string `validate:"tmdb_language"`
}

type discoverInput struct {
	Page                 int      `validate:"min=1,max=500"`
	Language             string   `validate:"tmdb_language"`
	Region               string   `validate:"omitempty,tmdb_region"`
	SortBy               string   `validate:"omitempty,oneof=popularity.asc popularity.desc release_date.asc release_date.desc revenue.asc revenue.desc primary_release_date.asc primary_release_date.desc original_title.asc original_title.desc vote_average.asc vote_average.desc vote_count.asc vote_count.desc"`
	Year                 int      `validate:"gte=0"`
	PrimaryReleaseYear   int      `validate:"gte=0"`
	VoteAverageGTE       *float64 `validate:"omitempty,gte=0,lte=10"`
	VoteAverageLTE       *float64 `validate:"omitempty,gte=0,lte=10"`
	VoteCountGTE         *int     `validate:"omitempty,gte=0"`
	WithOriginalLanguage string   `validate:"omitempty,len=2"`
}
