package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーのフィールド名をJSONのキー名にそろえる
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct は構造体の validate タグを検査し、最初の違反を ValidationError で返します。
func validateStruct(s any) error {
	return firstViolation(validate.Struct(s), "")
}

// validateField は単一の値を検査します。部分更新で使います。
func validateField(field string, value any, tag string) error {
	return firstViolation(validate.Var(value, tag), field)
}

func firstViolation(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate: %w", err)
	}
	fe := verrs[0]
	if field == "" {
		field = fe.Field()
	}
	return &ValidationError{Field: field, Message: describe(field, fe.Tag(), fe.Param())}
}

func describe(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "datetime":
		switch param {
		case "2006-01-02":
			return field + " must be a valid date (YYYY-MM-DD)"
		case "15:04":
			return field + " must be a valid time (HH:MM)"
		}
		return fmt.Sprintf("%s must match %s", field, param)
	}
	return field + " is invalid"
}
