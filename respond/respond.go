// Package respond writes Stockly's JSON result envelope.
//
// Every API handler answers with either
//
//	{"ok": true, "data": ...}
//
// or
//
//	{"ok": false, "error": {"code": ..., "message": ..., "fields": {...}}}
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
)

const maxBodyBytes = 1 << 20

// Envelope is the response body of every JSON endpoint.
type Envelope struct {
	OK    bool         `json:"ok"`
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail is the failure half of Envelope.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON writes data with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{OK: true, Data: data})
}

// OK writes data with status 200.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes data with status 201.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Error maps err onto the envelope. Internal errors are logged and replaced
// with a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	err = Normalize(err)
	code := apperr.ErrorCode(err)
	if code == apperr.EInternal {
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	write(w, apperr.HTTPStatus(code), Envelope{Error: &ErrorDetail{
		Code:    code,
		Message: apperr.ErrorMessage(err),
		Fields:  apperr.ErrorFields(err),
	}})
}

// Normalize converts package level validation errors into coded errors.
func Normalize(err error) error {
	var verr *datatable.ValidationError
	if errors.As(err, &verr) {
		return &apperr.Error{
			Code:   apperr.EInvalid,
			Msg:    "invalid table query",
			Fields: verr.FieldErrors(),
			Err:    err,
		}
	}
	if errors.Is(err, datatable.ErrMissingScope) {
		return &apperr.Error{Code: apperr.EForbidden, Msg: "no company selected", Err: err}
	}
	return err
}

// Decode reads a JSON request body into v. Unknown fields and trailing data
// are rejected.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperr.Wrap(err, apperr.EInvalid, "request body is too large")
		case errors.Is(err, io.EOF):
			return apperr.Wrap(err, apperr.EInvalid, "request body is empty")
		default:
			return apperr.Wrap(err, apperr.EInvalid, "request body is not valid JSON")
		}
	}
	if dec.More() {
		return apperr.New(apperr.EInvalid, "request body has trailing data")
	}
	return nil
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("writing response", zap.Error(err))
	}
}
