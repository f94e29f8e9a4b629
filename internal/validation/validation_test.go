package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupLike struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func TestDescribe_UsesJSONNames(t *testing.T) {
	err := Struct(signupLike{Email: "nope", Password: "short", PasswordConfirm: "other"})
	require.Error(t, err)

	msg, fields, ok := Describe(err)
	require.True(t, ok)

	rules := map[string]string{}
	for _, f := range fields {
		rules[f.Field] = f.Rule
		assert.NotEmpty(t, f.Message)
	}

	assert.Equal(t, "email", rules["email"])
	assert.Equal(t, "min", rules["password"])
	assert.Equal(t, "eqfield", rules["passwordConfirm"])
	assert.Contains(t, msg, "passwordConfirm must match password")
}

func TestDescribe_NonValidatorError(t *testing.T) {
	_, _, ok := Describe(errors.New("boom"))
	assert.False(t, ok)
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(signupLike{Email: "al@x.com", Password: "pw123456", PasswordConfirm: "pw123456"})
	assert.NoError(t, err)
}
