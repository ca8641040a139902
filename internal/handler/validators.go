package handler

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"attendance/internal/attendance"
	"attendance/internal/auth"
)

// custom validation tags
const (
	roleTag             = "role"
	attendanceStatusTag = "attendance_status"
)

var registerOnce sync.Once

// RegisterValidators installs the custom tags on gin's validator and makes
// field errors use JSON names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
		_ = v.RegisterValidation(roleTag, roleValidation)
		_ = v.RegisterValidation(attendanceStatusTag, attendanceStatusValidation)
	})
}

func roleValidation(fl validator.FieldLevel) bool {
	return auth.Role(fl.Field().String()).Valid()
}

func attendanceStatusValidation(fl validator.FieldLevel) bool {
	return attendance.Status(fl.Field().String()).Valid()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email address"
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", fe.Field(), fe.Param(), unit(fe))
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", fe.Field(), fe.Param(), unit(fe))
	case roleTag:
		return "Role must be Admin or Staff"
	case attendanceStatusTag:
		return "Status must be Present, Late or Absent"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func unit(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	}
	return ""
}
