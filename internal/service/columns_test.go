package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/pkg/config"
)

func TestParentValuesEncodeByKind(t *testing.T) {
	columns := testColumns(t)
	values, dropped := columns.ParentValues(models.School{
		Name:          "Lincoln",
		Address:       "1 Main St\nSpringfield",
		ContactName:   "Ada Park",
		ContactEmail:  "ada@example.org",
		Phone:         "555-0100",
		Certification: "State",
	})

	assert.Equal(t, map[string]interface{}{
		"long_text_address":      map[string]string{"text": "1 Main St\nSpringfield"},
		"text_contact_name":      "Ada Park",
		"email_contact":          map[string]string{"email": "ada@example.org", "text": "ada@example.org"},
		"phone_contact":          map[string]string{"phone": "555-0100", "countryShortName": "US"},
		"dropdown_certification": map[string][]string{"labels": {"State"}},
	}, values)
	assert.Empty(t, dropped)
}

func TestChildValuesSkipEmptyFields(t *testing.T) {
	columns := testColumns(t)
	values, dropped := columns.ChildValues(models.Teacher{
		Name:              "Ms. Rivera",
		StartDate:         "2026-08-20",
		InstructionalDays: "180",
		GradeLevels:       []string{"3", " ", "4"},
		Modality:          "Remote",
	})

	assert.Equal(t, map[string]interface{}{
		"date_start":                 map[string]string{"date": "2026-08-20"},
		"numbers_instructional_days": "180",
		"dropdown_grade_levels":      map[string][]string{"labels": {"3", "4"}},
		"status_modality":            map[string]string{"label": "Remote"},
	}, values)
	assert.Empty(t, dropped)
}

func TestChildValuesNormaliseOrDropMalformedFields(t *testing.T) {
	columns := testColumns(t)
	values, dropped := columns.ChildValues(models.Teacher{
		Name:              "Ms. Rivera",
		StartDate:         "08/15/2025",
		EndDate:           "June-ish",
		InstructionalDays: "1,080",
	})

	assert.Equal(t, map[string]interface{}{
		"date_start":                 map[string]string{"date": "2025-08-15"},
		"numbers_instructional_days": "1080",
	}, values)
	require.Len(t, dropped, 1)
	assert.Equal(t, "end_date", dropped[0].Field)
	assert.Equal(t, "June-ish", dropped[0].Value)

	_, dropped = columns.ChildValues(models.Teacher{InstructionalDays: "about 180"})
	require.Len(t, dropped, 1)
	assert.Equal(t, "instructional_days", dropped[0].Field)
}

func TestParentValuesDropInvalidEmail(t *testing.T) {
	columns := testColumns(t)
	values, dropped := columns.ParentValues(models.School{Name: "Lincoln", ContactEmail: "front desk"})
	assert.Empty(t, values)
	require.Len(t, dropped, 1)
	assert.Equal(t, "contact_email", dropped[0].Field)
}

func TestColumnOverrides(t *testing.T) {
	columns := testColumns(t)
	updated, err := columns.WithOverrides([]byte("parent:\n  phone: phone_main\n  notes: \"\"\nchild:\n  schedule: long_text_weekly\n"))
	require.NoError(t, err)

	parent := map[string]string{}
	for _, c := range updated.Parent {
		parent[c.Field] = c.ColumnID
	}
	assert.Equal(t, "phone_main", parent["phone"])
	_, kept := parent["notes"]
	assert.False(t, kept)
	assert.Equal(t, "long_text_weekly", updated.ScheduleColumn)
	assert.Equal(t, "long_text_schedule", columns.ScheduleColumn, "original map must be unchanged")

	withoutSchedule, err := columns.WithOverrides([]byte("child:\n  schedule: \"\"\n"))
	require.NoError(t, err)
	assert.Empty(t, withoutSchedule.ScheduleColumn)
	for _, c := range withoutSchedule.Child {
		assert.NotEqual(t, "schedule", c.Field)
	}

	_, err = columns.WithOverrides([]byte("parent:\n  favourite_colour: text_x\n"))
	require.Error(t, err)
}

func TestNewColumnMapReadsOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("child:\n  salary: text_pay\n"), 0o600))

	columns, err := NewColumnMap(config.MondayConfig{ColumnsFile: path})
	require.NoError(t, err)
	values, _ := columns.ChildValues(models.Teacher{Salary: "$40,000"})
	assert.Equal(t, "$40,000", values["text_pay"])
	assert.Empty(t, columns.ScheduleColumn)

	_, err = NewColumnMap(config.MondayConfig{ColumnsFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}
