package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role" validate:"omitempty,role"`
}

type resourceForm struct {
	Name   string `json:"name" validate:"required,max=10"`
	Type   string `json:"type" validate:"required,resource_type"`
	Status string `json:"status" validate:"omitempty,resource_status"`
	Serial string `json:"serial_number" validate:"omitempty,serial"`
}

func TestStructReturnsFieldErrorsKeyedByJSONName(t *testing.T) {
	err := Struct(signupForm{Email: "not-an-email", Password: "short", Role: "boss"})
	require.Error(t, err)

	var fields FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Contains(t, fields["password"], "at least 8 characters")
	assert.Equal(t, "must be one of: admin manager employee", fields["role"])
}

func TestStructAcceptsValidInput(t *testing.T) {
	assert.NoError(t, Struct(signupForm{Email: "bruce@wayne.test", Password: "Batcave#1939"}))
	assert.NoError(t, Struct(resourceForm{Name: "Tumbler", Type: "vehicle", Status: "in_use", Serial: "WE-0001"}))
}

func TestStructCustomRules(t *testing.T) {
	err := Struct(resourceForm{Name: "Tumbler Mk II", Type: "boat", Status: "lost", Serial: "bad serial!"})
	var fields FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "must be at most 10 characters", fields["name"])
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "status")
	assert.Equal(t, "may only contain letters, digits and dashes", fields["serial_number"])
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("severity", "high", "required,severity"))
	err := Var("severity", "urgent", "required,severity")
	var fields FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "must be one of: low medium high critical", fields["severity"])
}

func TestPassword(t *testing.T) {
	cases := map[string]bool{
		"Batcave#1939": true,
		"batcave#1939": false,
		"BATCAVE#1939": false,
		"Batcave1939":  false,
		"Bat#1":        false,
		"Batcave#1939" + strings.Repeat("x", 60): true,
		"Batcave#1939" + strings.Repeat("x", 61): false,
	}
	for pw, want := range cases {
		assert.Equal(t, want, Password(pw), pw)
	}
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	fe := FieldErrors{"b": "is required", "a": "is invalid"}
	assert.Equal(t, "validation failed: a is invalid; b is required", fe.Error())
}
