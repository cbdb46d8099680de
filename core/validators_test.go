package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeValidation(t *testing.T) {
	validate, translator := NewValidator()

	type payload struct {
		Value float64 `json:"value" validate:"grade"`
	}
	tests := []struct {
		value float64
		valid bool
	}{
		{value: -0.5},
		{value: 0, valid: true},
		{value: 5, valid: true},
		{value: MaxGrade, valid: true},
		{value: 10.01},
	}
	for _, tt := range tests {
		err := validate.Struct(payload{Value: tt.value})
		if tt.valid {
			assert.NoError(t, err, "value %v", tt.value)
			continue
		}
		require.Error(t, err, "value %v", tt.value)
		vErrs := err.(validator.ValidationErrors)
		assert.Equal(t, "value", vErrs[0].Field())
		assert.Equal(t, gradeText, vErrs[0].Translate(translator))
	}
}

func TestNotBlankValidation(t *testing.T) {
	validate, translator := NewValidator()

	type payload struct {
		Name string `json:"name" validate:"notblank"`
	}
	assert.NoError(t, validate.Struct(payload{Name: "Algebra"}))

	err := validate.Struct(payload{Name: "   "})
	require.Error(t, err)
	assert.Equal(t, notBlankText, err.(validator.ValidationErrors)[0].Translate(translator))
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{in: 7.7, want: 7.7},
		{in: 7 * 1.1, want: 7.7},
		{in: 2.346, want: 2.35},
		{in: 2.344, want: 2.34},
		{in: 1.005, want: 1.01},
		{in: 2.675, want: 2.68},
		{in: -1.005, want: -1.01},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in, 2), "Round(%v)", tt.in)
	}
}
