package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc/internal/domain"
	"github.com/veridoc/veridoc/internal/ports"
	"github.com/veridoc/veridoc/internal/schema"
)

func TestNewRequiredFieldsCheck(t *testing.T) {
	check, err := NewRequiredFieldsCheck(CheckNameRequiredFields)
	require.NoError(t, err)
	assert.Equal(t, "required_fields", check.Name())
	assert.NoError(t, check.Validate())

	check, err = NewRequiredFieldsCheck("")
	assert.ErrorIs(t, err, ErrEmptyCheckName)
	assert.Nil(t, check)
}

func TestRequiredFieldsCheck_Evaluate(t *testing.T) {
	completePassport := map[string]string{
		"name":            "JANE DOE",
		"dob":             "1995-12-01",
		"issuing_country": "USA",
		"id_number":       "X1234567",
		"expiry_date":     "2030-07-22",
	}

	tests := []struct {
		name       string
		values     map[string]string
		wantStatus domain.Status
		wantDetail []string
	}{
		{
			name:       "all fields present",
			values:     completePassport,
			wantStatus: domain.StatusPass,
		},
		{
			name: "one field missing",
			values: map[string]string{
				"name":            "JANE DOE",
				"dob":             "1995-12-01",
				"issuing_country": "USA",
				"id_number":       "X1234567",
			},
			wantStatus: domain.StatusFail,
			wantDetail: []string{"expiry_date"},
		},
		{
			name: "several fields missing",
			values: map[string]string{
				"name":            "JANE DOE",
				"issuing_country": "USA",
			},
			wantStatus: domain.StatusFail,
			wantDetail: []string{"dob", "id_number", "expiry_date"},
		},
		{
			name:       "everything missing",
			values:     map[string]string{},
			wantStatus: domain.StatusFail,
			wantDetail: []string{"name", "dob", "issuing_country", "id_number", "expiry_date"},
		},
	}

	check, err := NewRequiredFieldsCheck(CheckNameRequiredFields)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := check.Evaluate(context.Background(), passportInput(t, tt.values))

			assert.Equal(t, "required_fields", result.Name)
			assert.Equal(t, tt.wantStatus, result.Status)
			for _, field := range tt.wantDetail {
				assert.Contains(t, result.Detail, field)
			}
			if tt.wantStatus == domain.StatusPass {
				assert.Empty(t, result.Detail)
			}
		})
	}
}

func TestRequiredFieldsCheck_LicenseSchema(t *testing.T) {
	check, err := NewRequiredFieldsCheck(CheckNameRequiredFields)
	require.NoError(t, err)

	sch := schemaFor(t, domain.DocumentTypeDriversLicense)
	fields := testFields(t, sch, map[string]string{
		"name":          "JOHN Q PUBLIC",
		"dob":           "1990-03-04",
		"expiry_date":   "2027-01-15",
		"id_number":     "D1234567",
		"issuing_state": "CA",
	})

	result := check.Evaluate(context.Background(), ports.CheckInput{
		Fields: fields,
		Schema: sch,
		Now:    testNow,
	})

	assert.Equal(t, domain.StatusFail, result.Status)
	assert.Contains(t, result.Detail, "address")
	assert.NotContains(t, result.Detail, "issuing_state")
}

// TestRequiredFieldsCheck_RestoringFieldFlips verifies that filling the
// one missing field flips the verdict from fail to pass.
func TestRequiredFieldsCheck_RestoringFieldFlips(t *testing.T) {
	check, err := NewRequiredFieldsCheck(CheckNameRequiredFields)
	require.NoError(t, err)

	values := map[string]string{
		"name":            "JANE DOE",
		"dob":             "1995-12-01",
		"issuing_country": "USA",
		"id_number":       "X1234567",
	}
	in := passportInput(t, values)
	assert.Equal(t, domain.StatusFail, check.Evaluate(context.Background(), in).Status)

	values[schema.FieldExpiryDate] = "2030-07-22"
	in = passportInput(t, values)
	assert.Equal(t, domain.StatusPass, check.Evaluate(context.Background(), in).Status)
}
