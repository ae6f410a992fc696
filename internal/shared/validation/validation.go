// Package validation wires custom tags into gin's go-playground validator.
package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	once   sync.Once
	mu     sync.Mutex
	engine *validator.Validate
)

// Engine returns gin's validator with JSON field names enabled.
func Engine() *validator.Validate {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New()
			v.SetTagName("binding")
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		engine = v
	})
	return engine
}

// RegisterEnum registers a `binding` tag so that a string field must equal one of values.
// Empty strings pass; combine with "required" when the field is mandatory.
func RegisterEnum(tag string, values []string) {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	v := Engine()
	mu.Lock()
	defer mu.Unlock()
	_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, ok := allowed[s]
		return ok
	})
}

// Struct validates s with the shared engine.
func Struct(s any) error {
	return Engine().Struct(s)
}

// OneOf reports whether value is in values.
func OneOf(value string, values []string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
