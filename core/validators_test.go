package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanRut(t *testing.T) {
	tests := []struct {
		rut  string
		want string
	}{
		{rut: "12.345.678-5", want: "12345678-5"},
		{rut: " 12345678-5 ", want: "12345678-5"},
		{rut: "123456785", want: "12345678-5"},
		{rut: "22.333.444-k", want: "22333444-K"},
		{rut: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.rut, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanRut(tt.rut))
		})
	}
}

func TestValidRut(t *testing.T) {
	tests := []struct {
		rut  string
		want bool
	}{
		{rut: "12345678-5", want: true},
		{rut: "11111111-1", want: true},
		{rut: "19876543-0", want: true},
		{rut: "22333444-K", want: true},
		{rut: "10000013-K", want: true},
		{rut: "11111111-2", want: false},
		{rut: "22333444-k", want: false}, // not cleaned
		{rut: "12.345.678-5", want: false},
		{rut: "123456789-0", want: false},
		{rut: "abc", want: false},
		{rut: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.rut, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidRut(tt.rut))
		})
	}
}

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)

	type form struct {
		Name string `json:"name" validate:"required,notblank"`
		Rut  string `json:"rut" validate:"required,rut"`
	}

	err := validate.Struct(form{Name: "  ", Rut: "11111111-2"})
	require.Error(t, err)

	got := make(map[string]string)
	for _, fe := range err.(validator.ValidationErrors) {
		got[fe.Field()] = fe.Translate(translator)
	}
	assert.Equal(t, map[string]string{"name": notBlankText, "rut": rutText}, got)

	err = validate.Struct(form{Rut: "12345678-5"})
	require.Error(t, err)
	fe := err.(validator.ValidationErrors)[0]
	assert.Equal(t, "name", fe.Field())
	assert.Equal(t, requiredText, fe.Translate(translator))

	assert.NoError(t, validate.Struct(form{Name: "Ana", Rut: "12345678-5"}))
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Ana Pérez", CleanString("  Ana Pérez\n"))
	assert.Equal(t, "ana@ubiobio.cl", CleanString(" Ana@UBIOBIO.cl ", true))
}
