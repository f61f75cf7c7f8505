package resolver

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "nomnom-api/backend/pkg/errors"
	"go.uber.org/zap"
)

// panicLogger receives resolver panics recovered by the executor.
type panicLogger struct {
	logger *zap.Logger
}

func (l *panicLogger) LogPanic(_ context.Context, value interface{}) {
	l.logger.Error("Resolver panic", zap.String("panic", fmt.Sprint(value)), zap.Stack("stack"))
}

// fail returns the categorized error in err's chain so the executor can
// render its extension code. Anything uncategorized is an infrastructure
// failure.
func fail(err error) error {
	if err == nil {
		return nil
	}
	if coded := apperrors.Find(err); coded != nil {
		return coded
	}
	return apperrors.NewUpstream("entity store", err)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(recipeStateValidation, recipeState{})
	return v
}

// validationError reports the first failing field as a validation error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.NewValidation(fe.Field(), describeRule(fe))
	}
	return apperrors.NewValidation("input", err.Error())
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "eqlen":
		return fmt.Sprintf("must have as many entries as %s", fe.Param())
	case "email":
		return "must be an email address"
	case "url":
		return "must be a URL"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}

func (r *Resolver) validateInput(input interface{}) error {
	if err := r.validate.Struct(input); err != nil {
		return validationError(err)
	}
	return nil
}
