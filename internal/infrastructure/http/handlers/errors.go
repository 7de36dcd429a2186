package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nutrisense/api/internal/domain/nutrition"
	apperrors "github.com/nutrisense/api/pkg/errors"
)

// ToAppError maps pipeline errors onto API error codes. The field list is
// non-nil only for validation failures.
func ToAppError(err error) (*apperrors.AppError, []nutrition.FieldError) {
	var (
		verr *nutrition.ValidationError
		cerr *nutrition.ClassificationError
		terr *nutrition.GenerationTruncationError
	)

	switch {
	case errors.As(err, &verr):
		details := fmt.Sprintf("%d field(s) failed validation", len(verr.Fields))
		return apperrors.NewValidationError(details, verr.Fields).WithCause(err), verr.Fields
	case errors.As(err, &cerr):
		if cerr.Kind == nutrition.UnknownCategory {
			fields := cerr.AsValidationError().Fields
			return apperrors.NewValidationError("1 field(s) failed validation", fields).WithCause(err), fields
		}
		return apperrors.NewAppError(apperrors.CodeClassificationFailed, "Risk classification failed", "").WithCause(err), nil
	case errors.As(err, &terr):
		return apperrors.NewAppError(
			apperrors.CodeGenerationTruncated,
			"Advice generation was truncated",
			"finish reason "+terr.FinishReason,
		).WithCause(err), nil
	default:
		return apperrors.Wrap(err, ""), nil
	}
}

// toValidationError converts validator errors on request DTOs into the
// domain validation error
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewBadRequestError("Invalid request").WithCause(err)
	}

	fields := make([]nutrition.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, nutrition.FieldError{
			Field:    fe.Namespace()[strings.Index(fe.Namespace(), ".")+1:],
			Reason:   reasonFor(fe),
			Accepted: acceptedFor(fe),
		})
	}
	return &nutrition.ValidationError{Fields: fields}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("value %v is not allowed", fe.Value())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

func acceptedFor(fe validator.FieldError) string {
	if fe.Tag() == "oneof" {
		return "one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return ""
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}
