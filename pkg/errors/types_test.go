package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeStorage, "STORE_APPEND", "failed to append message")
	assert.Equal(t, "[STORE_APPEND] failed to append message", err.Error())

	withDetails := New(ErrorTypeTransport, "BIND_FAILED", "failed to bind listener").WithDetails("0.0.0.0:9999")
	assert.Equal(t, "[BIND_FAILED] failed to bind listener: 0.0.0.0:9999", withDetails.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(cause, ErrorTypeStorage, "STORE_APPEND", "failed to append message")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestIsMatchesTypeAndCode(t *testing.T) {
	err := New(ErrorTypeStorage, "STORE_QUERY", "failed to query")

	assert.ErrorIs(t, err, New(ErrorTypeStorage, "STORE_QUERY", "different message"))
	assert.NotErrorIs(t, err, New(ErrorTypeStorage, "STORE_APPEND", "failed to query"))
	assert.NotErrorIs(t, err, New(ErrorTypeTransport, "STORE_QUERY", "failed to query"))
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	inner := New(ErrorTypeTimeout, "SEND_TIMEOUT", "send queue full")
	outer := Wrap(inner, ErrorTypeTransport, "DELIVERY_FAILED", "failed to deliver frame")

	var structured *Error
	assert.ErrorAs(t, outer.Unwrap(), &structured)
	assert.Equal(t, ErrorTypeTimeout, structured.Type)
}
