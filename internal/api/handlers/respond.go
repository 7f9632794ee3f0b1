package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/eln-backtest/internal/backtest"
)

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error  string       `json:"error"`
	Kind   string       `json:"kind,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

// FieldError describes one invalid request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondBacktestError maps a backtest failure to its HTTP status
func respondBacktestError(w http.ResponseWriter, err error) {
	kind := backtest.ErrorKind(err)
	respondJSON(w, StatusFor(err), ErrorResponse{Error: err.Error(), Kind: kind})
}

// StatusFor returns the HTTP status of a backtest error
func StatusFor(err error) int {
	switch backtest.ErrorKind(err) {
	case "insufficient_data", "insufficient_history", "empty_result":
		return http.StatusUnprocessableEntity
	case "invalid_config":
		return http.StatusBadRequest
	case "unknown_ticker":
		return http.StatusNotFound
	case "canceled":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeAndValidate reads a JSON body into req and runs its validate tags
func decodeAndValidate(r *http.Request, req interface{}) *ErrorResponse {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return &ErrorResponse{Error: "Invalid request body: " + err.Error()}
	}

	if err := validate.StructCtx(r.Context(), req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			resp := &ErrorResponse{Error: "Validation failed", Kind: "invalid_request"}
			for _, fe := range fieldErrs {
				resp.Fields = append(resp.Fields, FieldError{
					Field:   fe.Field(),
					Message: fieldMessage(fe),
				})
			}
			return resp
		}
		return &ErrorResponse{Error: err.Error()}
	}

	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
