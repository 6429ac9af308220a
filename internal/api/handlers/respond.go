package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/isdelr/ender-accounts-be/internal/apperror"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    apperror.Code `json:"code"`
	Message string        `json:"message"`
	Field   string        `json:"field,omitempty"`
}

// respondWithData writes a successful RPC result.
func respondWithData(w http.ResponseWriter, code int, data interface{}) {
	respondWithJSON(w, code, map[string]interface{}{"data": data})
}

// respondWithError writes a structured RPC error. Errors outside the
// taxonomy are reported as a generic INTERNAL failure.
func respondWithError(w http.ResponseWriter, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		log.Error().Err(err).Msg("Unclassified error reached the transport")
		appErr = apperror.Internal("internal server error", err)
	}
	respondWithJSON(w, statusFor(appErr.Code), map[string]interface{}{
		"error": errorBody{Code: appErr.Code, Message: appErr.Message, Field: appErr.Field},
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Warn().Err(err).Msg("Failed to write HTTP response")
	}
}

func statusFor(code apperror.Code) int {
	switch code {
	case apperror.CodeValidation:
		return http.StatusBadRequest
	case apperror.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperror.CodeForbidden:
		return http.StatusForbidden
	case apperror.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeInput reads a JSON request body into dst, rejecting unknown fields.
func decodeInput(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	var sizeErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return apperror.Validation(typeErr.Field, fmt.Sprintf("%s must be %s", typeErr.Field, describeKind(typeErr.Type)))
	case errors.As(err, &sizeErr):
		return apperror.Validation("", "request body too large")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return apperror.Validation(field, fmt.Sprintf("unknown field %s", field))
	default:
		return apperror.Validation("", "invalid request body")
	}
}

func describeKind(t reflect.Type) string {
	if t == nil {
		return "valid"
	}
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "a positive integer"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.String:
		return "a string"
	default:
		return "valid"
	}
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperror.Validation(name, fmt.Sprintf("%s must be an integer", name))
	}
	return &v, nil
}

// queryID parses a required positive id query parameter.
func queryID(r *http.Request) (uint, error) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		return 0, apperror.Validation("id", "id is required")
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperror.Validation("id", "id must be an integer")
	}
	return uint(v), nil
}
