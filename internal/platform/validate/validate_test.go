// Copyright (c) 2026 Apphub. All rights reserved.

package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/apphub/metastore/internal/platform/validate"
)

func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "owner", "ops-team@apphub.dev", false},
		{"empty_string", "owner", "", true},
		{"whitespace_only", "owner", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "bad_request", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

func TestValidator_Namespace(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		isValid   bool
	}{
		{"simple", "analytics", true},
		{"with_colon_and_dash", "analytics:prod-reports", true},
		{"leading_colon_invalid", ":analytics", false},
		{"empty", "", false},
		{"too_long", string(make([]byte, validate.MaxNamespaceLen+1)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Namespace("namespace", tt.namespace)
			assert.Equal(t, !tt.isValid, v.HasErrors())
		})
	}
}

func TestValidator_SchemaHash(t *testing.T) {
	v := &validate.Validator{}
	v.SchemaHash("schemaHash", "")
	assert.False(t, v.HasErrors(), "empty schemaHash is optional")

	v = &validate.Validator{}
	v.SchemaHash("schemaHash", "ab")
	assert.True(t, v.HasErrors(), "schemaHash shorter than minimum must fail")

	v = &validate.Validator{}
	v.SchemaHash("schemaHash", "abcdef")
	assert.False(t, v.HasErrors())
}

func TestValidator_Tags(t *testing.T) {
	v := &validate.Validator{}
	v.Tags("tags", []string{"a", "b", "c"})
	assert.False(t, v.HasErrors())

	v = &validate.Validator{}
	v.Tags("tags", []string{"a", ""})
	assert.True(t, v.HasErrors())

	many := make([]string, validate.MaxTagCount+1)
	for i := range many {
		many[i] = "tag"
	}
	v = &validate.Validator{}
	v.Tags("tags", many)
	assert.True(t, v.HasErrors())
}

func TestValidator_Email(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		isValid bool
	}{
		{"valid_email", "test@example.com", true},
		{"invalid_format", "invalid-email", false},
		{"missing_domain", "test@", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Email("email", tt.email)

			if tt.isValid {
				assert.False(t, v.HasErrors())
			} else {
				assert.True(t, v.HasErrors())
			}
		})
	}
}

func TestValidator_Chain(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Required("namespace", "analytics").
		Namespace("namespace", "analytics").
		Key("key", "report-42").
		Err()

	assert.NoError(t, err)
	assert.False(t, v.HasErrors())
}

func TestValidator_Chain_Failure(t *testing.T) {
	v := &validate.Validator{}

	v.Required("namespace", "").
		Namespace("namespace", "").
		Key("key", "")

	ae := apperr.As(v.Err())
	require.NotNil(t, ae)
	assert.GreaterOrEqual(t, len(ae.Details), 3)
}
