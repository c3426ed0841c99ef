package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresName(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate(map[string]any{"phone": "+49 711 1234567"})
	assert.ErrorIs(t, err, ErrMissingName)

	_, err = v.Validate(map[string]any{"company_name": "X"})
	assert.ErrorIs(t, err, ErrMissingName, "single-rune names are rejected")
}

func TestValidateDropsInvalidOptionalFields(t *testing.T) {
	v := NewValidator()

	out, err := v.Validate(map[string]any{
		"company_name": "Bäckerei Müller",
		"email":        "not-an-email",
		"phone":        "12",
		"postal_code":  "123",
	})
	require.NoError(t, err)

	_, hasEmail := out["email"]
	_, hasPhone := out["phone"]
	_, hasPostal := out["postal_code"]
	assert.False(t, hasEmail)
	assert.False(t, hasPhone)
	assert.False(t, hasPostal)
	assert.Equal(t, "Bäckerei Müller", out["company_name"])
}

func TestValidateCanonicalizesFields(t *testing.T) {
	v := NewValidator()

	out, err := v.Validate(map[string]any{
		"company_name": "  Bäckerei Müller  ",
		"email":        "Info@Mueller.Example",
		"phone":        "0711 1234567",
		"website":      "mueller.example/start",
		"postal_code":  "70173",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bäckerei Müller", out["company_name"])
	assert.Equal(t, "info@mueller.example", out["email"])
	assert.Equal(t, "+49 711 1234567", out["phone"])
	assert.Equal(t, "https://mueller.example/start", out["website"])
	assert.Equal(t, "70173", out["postal_code"])
}

func TestValidateKeepsUnknownFields(t *testing.T) {
	v := NewValidator()

	out, err := v.Validate(map[string]any{
		"company_name": "Bäckerei Müller",
		"detail_url":   "https://example.com/d",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/d", out["detail_url"])
}
