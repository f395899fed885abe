package main

import (
	"encoding/json"
	"net/http"
	"reflect"
	"time"

	"casinodir/internal/domain/entries"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	// entry kinds accepted on write; the legacy "proxy" spelling is not
	Validate.RegisterValidation("entrykind", func(fl validator.FieldLevel) bool {
		_, err := entries.ParseType(fl.Field().String())
		return err == nil
	})

	// nullable patch fields are checked by their value; null and absent skip
	Validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		if n, ok := v.Interface().(interface{ Validatable() any }); ok {
			return n.Validatable()
		}
		return nil
	}, entries.Nullable[string]{}, entries.Nullable[float64]{}, entries.Nullable[time.Time]{})
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// readJSON decodes a body of at most 1MB into data, rejecting unknown
// fields.
func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	maxBytes := 1_048_578 //1mb
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	type envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	}

	return writeJSON(w, status, &envelope{
		Success: false,
		Message: message,
		Status:  status,
	})
}

func (app *application) jsonResponse(w http.ResponseWriter, status int, data any) error {
	type envelope struct {
		Data any `json:"data"`
	}
	return writeJSON(w, status, &envelope{Data: data})
}
