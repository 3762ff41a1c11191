package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	notFound := NewNotFoundError("offer")
	assert.Equal(t, "offer not found", notFound.Error())
	assert.True(t, IsNotFound(notFound))
	assert.True(t, IsNotFound(errors.Wrap(notFound, "getting offer")))
	assert.False(t, IsNotFound(NewConflictError("offer not found")))

	assert.Equal(t, "application has already been processed", NewAlreadyProcessedError("application").Error())
	assert.Equal(t, "practice is already closed", NewAlreadyClosedError("practice").Error())

	shut := NewShutdownError("integrity issue")
	assert.True(t, IsShutdown(errors.Wrap(shut, "closing")))
	assert.False(t, IsShutdown(notFound))

	assert.Equal(t, "", NewValidationError(nil, FieldError{Field: "rut", Error: "invalid RUT"}).Error())
	assert.Equal(t, "boom", NewValidationError(errors.New("boom")).Error())
}
