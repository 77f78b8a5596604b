package apperr

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error is internal", sql.ErrConnDone, EInternal},
		{"coded", New(ENotFound, "product not found"), ENotFound},
		{"wrapped coded", fmt.Errorf("loading: %w", New(EConflict, "sku taken")), EConflict},
		{"empty code falls through", &Error{Err: New(EForbidden, "no")}, EForbidden},
		{"empty code without cause", &Error{Msg: "odd"}, EInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessageHidesInternalErrors(t *testing.T) {
	err := fmt.Errorf("query failed: %w", sql.ErrTxDone)
	assert.Equal(t, "an internal error has occurred", ErrorMessage(err))

	err = fmt.Errorf("ctx: %w", NotFound("product"))
	assert.Equal(t, "product not found", ErrorMessage(err))
}

func TestErrorFields(t *testing.T) {
	inner := Invalid("bad input", map[string]string{"sku": "required"})
	err := Wrap(inner, EInvalid, "cannot create product")

	assert.Equal(t, map[string]string{"sku": "required"}, ErrorFields(err))
	assert.Nil(t, ErrorFields(New(EInvalid, "x")))
	assert.Nil(t, ErrorFields(sql.ErrNoRows))
}

func TestErrorString(t *testing.T) {
	e := &Error{Code: EInternal, Op: "database.CreateProduct", Msg: "insert", Err: sql.ErrConnDone}
	assert.Equal(t, "database.CreateProduct: insert: sql: connection is already closed", e.Error())
	assert.Equal(t, "<not found>", (&Error{Code: ENotFound}).Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(EInvalid))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(ETooManyRequests))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("bogus"))
	assert.Nil(t, Wrap(nil, EInvalid, "x"))
}
