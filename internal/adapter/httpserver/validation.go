package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New(validator.WithRequiredStructEnabled())
		// report json names so clients can map errors onto their fields
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return vld
}

// decodeJSON reads one JSON document from the (size-capped) request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return fmt.Errorf("op=http.decode: %w", domain.ErrPayloadTooLarge)
		}
		return fmt.Errorf("op=http.decode: %w: invalid json", domain.ErrInvalidArgument)
	}
	return nil
}

// validationDetails flattens validator errors into field -> failed tag.
func validationDetails(err error) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}

// bind decodes and validates the body into v, writing the error response on failure.
func bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		writeError(w, r, err, nil)
		return false
	}
	if err := getValidator().Struct(v); err != nil {
		writeError(w, r, fmt.Errorf("op=http.validate: %w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
		return false
	}
	return true
}
