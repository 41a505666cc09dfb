package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/task-manager/internal/apperror"
)

// validate checks the `validate` tags on account input. Field errors are
// reported under their JSON names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// "notpassword": the value is not the word "password" in any casing.
	mustRegister(v, "notpassword", func(fl validator.FieldLevel) bool {
		return !strings.EqualFold(fl.Field().String(), "password")
	})
	// "dotteddomain": the part after the last "@" contains a dot, so
	// "a@localhost" is refused.
	mustRegister(v, "dotteddomain", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.Contains(s[strings.LastIndex(s, "@")+1:], ".")
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("service: registering %q validation: %v", tag, err))
	}
}

// fieldMessages holds the client-facing text per "<field>.<tag>".
var fieldMessages = map[string]string{
	"name.required":        "Name is required",
	"email.required":       "Email is required",
	"email.email":          "Email is invalid",
	"email.dotteddomain":   "Email is invalid",
	"password.required":    "Password must be at least 7 characters",
	"password.min":         "Password must be at least 7 characters",
	"password.notpassword": "Password must not contain password string",
	"age.gte":              "Age must be a positive number",
}

// checkAccount validates in, or only the named struct fields of it when
// fields is non-empty. The first failing field becomes the ValidationError.
func checkAccount(in RegisterInput, fields ...string) error {
	var err error
	if len(fields) == 0 {
		err = validate.Struct(in)
	} else {
		err = validate.StructPartial(in, fields...)
	}
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("service: validating account input: %w", err)
	}

	fe := fieldErrs[0]
	msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
	if !ok {
		msg = "Invalid value for " + fe.Field()
	}
	return apperror.ValidationFailed(fe.Field(), msg)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalized trims every text field and lower-cases the email.
func (in RegisterInput) normalized() RegisterInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	return in
}

// checkPatchKeys rejects the whole patch when any key is outside allowed.
// Keys are checked in sorted order so the reported field is stable.
func checkPatchKeys(patch map[string]json.RawMessage, allowed ...string) error {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !slices.Contains(allowed, k) {
			return apperror.InvalidUpdate(k)
		}
	}
	return nil
}

// decodeField unmarshals one patch value, turning a type mismatch into a
// validation error on that field.
func decodeField(patch map[string]json.RawMessage, field string, dst any) error {
	if err := json.Unmarshal(patch[field], dst); err != nil {
		return apperror.ValidationFailed(field, "Invalid value for "+field)
	}
	return nil
}
