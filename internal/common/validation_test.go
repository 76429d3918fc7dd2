package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDate struct {
	valid bool
	raw   string
}

func (d fakeDate) IsValid() bool  { return d.valid }
func (d fakeDate) String() string { return d.raw }

func TestValidatorCollectsAllFailures(t *testing.T) {
	amount := 5.0
	neg := -1.0
	v := NewValidator().
		Field("name", "  ", Required).
		Field("amount", &amount, Required, NonNegative).
		Field("missing", (*float64)(nil), Required).
		Field("qty", -2, NonNegative).
		Field("tax", &neg, NonNegative).
		Field("when", fakeDate{raw: "someday"}, ValidDate).
		Field("blank", fakeDate{}, ValidDate).
		Field("ok", fakeDate{valid: true, raw: "2024-01-01"}, ValidDate)

	require.True(t, v.HasErrors())
	fields := make([]string, 0, len(v.Errors()))
	for _, e := range v.Errors() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"name", "missing", "qty", "tax", "when", "blank"}, fields)

	err := v.Error()
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "must be a parseable calendar date")
}

func TestValidatorNoErrors(t *testing.T) {
	v := NewValidator().Field("qty", 0, NonNegative).Field("p", (*float64)(nil), NonNegative)
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
	assert.Empty(t, v.ErrorMessage())
}
