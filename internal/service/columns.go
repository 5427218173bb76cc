package service

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/pkg/config"
)

// ColumnKind selects how a field value is encoded for its column type.
type ColumnKind string

const (
	KindText     ColumnKind = "text"
	KindLongText ColumnKind = "long_text"
	KindEmail    ColumnKind = "email"
	KindPhone    ColumnKind = "phone"
	KindDate     ColumnKind = "date"
	KindNumbers  ColumnKind = "numbers"
	KindDropdown ColumnKind = "dropdown"
	KindStatus   ColumnKind = "status"
)

// ColumnMapping binds one form field to one record column.
type ColumnMapping struct {
	Field    string
	ColumnID string
	Kind     ColumnKind
}

// ColumnMap holds the parent and child field mappings plus the columns written after creation.
type ColumnMap struct {
	Parent []ColumnMapping
	Child  []ColumnMapping

	CalendarColumn     string
	BellScheduleColumn string
	DocumentColumn     string
	ScheduleColumn     string
}

var defaultParentColumns = []ColumnMapping{
	{Field: "address", ColumnID: "long_text_address", Kind: KindLongText},
	{Field: "contact_name", ColumnID: "text_contact_name", Kind: KindText},
	{Field: "contact_email", ColumnID: "email_contact", Kind: KindEmail},
	{Field: "phone", ColumnID: "phone_contact", Kind: KindPhone},
	{Field: "certification", ColumnID: "dropdown_certification", Kind: KindDropdown},
	{Field: "notes", ColumnID: "long_text_notes", Kind: KindLongText},
	{Field: "number_of_teachers", ColumnID: "text_teacher_count", Kind: KindText},
}

var defaultChildColumns = []ColumnMapping{
	{Field: "description", ColumnID: "long_text_description", Kind: KindLongText},
	{Field: "duties", ColumnID: "long_text_duties", Kind: KindLongText},
	{Field: "salary", ColumnID: "text_salary", Kind: KindText},
	{Field: "start_date", ColumnID: "date_start", Kind: KindDate},
	{Field: "end_date", ColumnID: "date_end", Kind: KindDate},
	{Field: "instructional_days", ColumnID: "numbers_instructional_days", Kind: KindNumbers},
	{Field: "grade_levels", ColumnID: "dropdown_grade_levels", Kind: KindDropdown},
	{Field: "subject_areas", ColumnID: "dropdown_subject_areas", Kind: KindDropdown},
	{Field: "languages", ColumnID: "dropdown_languages", Kind: KindDropdown},
	{Field: "certification", ColumnID: "dropdown_teacher_certification", Kind: KindDropdown},
	{Field: "modality", ColumnID: "status_modality", Kind: KindStatus},
}

// columnOverrides is the YAML shape of MONDAY_COLUMNS_FILE. A blank column ID drops the field.
type columnOverrides struct {
	Parent map[string]string `yaml:"parent"`
	Child  map[string]string `yaml:"child"`
}

// NewColumnMap builds the default tables, applies cfg's artifact columns and then the YAML overrides.
func NewColumnMap(cfg config.MondayConfig) (ColumnMap, error) {
	m := ColumnMap{
		Parent:             append([]ColumnMapping(nil), defaultParentColumns...),
		Child:              append([]ColumnMapping(nil), defaultChildColumns...),
		CalendarColumn:     cfg.CalendarCol,
		BellScheduleColumn: cfg.BellCol,
		DocumentColumn:     cfg.DocumentCol,
		ScheduleColumn:     cfg.ScheduleCol,
	}
	if m.ScheduleColumn != "" {
		m.Child = append(m.Child, ColumnMapping{Field: "schedule", ColumnID: m.ScheduleColumn, Kind: KindLongText})
	}
	if cfg.ColumnsFile == "" {
		return m, nil
	}
	raw, err := os.ReadFile(cfg.ColumnsFile)
	if err != nil {
		return ColumnMap{}, fmt.Errorf("read column overrides: %w", err)
	}
	return m.WithOverrides(raw)
}

// WithOverrides applies a YAML override document to a copy of m.
func (m ColumnMap) WithOverrides(raw []byte) (ColumnMap, error) {
	var overrides columnOverrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return ColumnMap{}, fmt.Errorf("decode column overrides: %w", err)
	}
	parent, err := applyOverrides(m.Parent, overrides.Parent)
	if err != nil {
		return ColumnMap{}, fmt.Errorf("parent columns: %w", err)
	}
	child, err := applyOverrides(m.Child, overrides.Child)
	if err != nil {
		return ColumnMap{}, fmt.Errorf("child columns: %w", err)
	}
	m.Parent, m.Child = parent, child
	m.ScheduleColumn = ""
	for _, c := range child {
		if c.Field == "schedule" {
			m.ScheduleColumn = c.ColumnID
		}
	}
	return m, nil
}

func applyOverrides(base []ColumnMapping, overrides map[string]string) ([]ColumnMapping, error) {
	known := make(map[string]bool, len(base))
	for _, c := range base {
		known[c.Field] = true
	}
	for field := range overrides {
		if !known[field] {
			return nil, fmt.Errorf("unknown field %q", field)
		}
	}
	out := make([]ColumnMapping, 0, len(base))
	for _, c := range base {
		if id, ok := overrides[c.Field]; ok {
			if strings.TrimSpace(id) == "" {
				continue
			}
			c.ColumnID = strings.TrimSpace(id)
		}
		out = append(out, c)
	}
	return out, nil
}

// fieldValue is a form field read for encoding: free text, a multi-select list, or both.
type fieldValue struct {
	text string
	list []string
}

var schoolFields = map[string]func(models.School) fieldValue{
	"address":            func(s models.School) fieldValue { return fieldValue{text: s.Address} },
	"contact_name":       func(s models.School) fieldValue { return fieldValue{text: s.ContactName} },
	"contact_email":      func(s models.School) fieldValue { return fieldValue{text: s.ContactEmail} },
	"phone":              func(s models.School) fieldValue { return fieldValue{text: s.Phone} },
	"certification":      func(s models.School) fieldValue { return fieldValue{text: s.Certification} },
	"notes":              func(s models.School) fieldValue { return fieldValue{text: s.Notes} },
	"number_of_teachers": func(s models.School) fieldValue { return fieldValue{text: s.NumberOfTeachers} },
}

var teacherFields = map[string]func(models.Teacher) fieldValue{
	"description":        func(t models.Teacher) fieldValue { return fieldValue{text: t.Description} },
	"duties":             func(t models.Teacher) fieldValue { return fieldValue{text: t.Duties} },
	"salary":             func(t models.Teacher) fieldValue { return fieldValue{text: t.Salary} },
	"schedule":           func(t models.Teacher) fieldValue { return fieldValue{text: t.Schedule} },
	"start_date":         func(t models.Teacher) fieldValue { return fieldValue{text: t.StartDate} },
	"end_date":           func(t models.Teacher) fieldValue { return fieldValue{text: t.EndDate} },
	"instructional_days": func(t models.Teacher) fieldValue { return fieldValue{text: t.InstructionalDays} },
	"grade_levels":       func(t models.Teacher) fieldValue { return fieldValue{list: t.GradeLevels} },
	"subject_areas":      func(t models.Teacher) fieldValue { return fieldValue{list: t.SubjectAreas} },
	"languages":          func(t models.Teacher) fieldValue { return fieldValue{list: t.Languages} },
	"certification":      func(t models.Teacher) fieldValue { return fieldValue{text: t.Certification} },
	"modality":           func(t models.Teacher) fieldValue { return fieldValue{text: t.Modality} },
}

// DroppedField is a mapped field whose value does not fit its column type and was left out.
type DroppedField struct {
	Field  string
	Value  string
	Reason string
}

// ParentValues encodes the school's mapped fields. Empty fields are left out, as are values the
// column type cannot hold; those are returned as dropped.
func (m ColumnMap) ParentValues(s models.School) (map[string]interface{}, []DroppedField) {
	return encodeColumns(m.Parent, func(field string) fieldValue {
		if get, ok := schoolFields[field]; ok {
			return get(s)
		}
		return fieldValue{}
	})
}

// ChildValues encodes the teacher's mapped fields the same way ParentValues does.
func (m ColumnMap) ChildValues(t models.Teacher) (map[string]interface{}, []DroppedField) {
	return encodeColumns(m.Child, func(field string) fieldValue {
		if get, ok := teacherFields[field]; ok {
			return get(t)
		}
		return fieldValue{}
	})
}

func encodeColumns(mappings []ColumnMapping, read func(field string) fieldValue) (map[string]interface{}, []DroppedField) {
	values := map[string]interface{}{}
	var dropped []DroppedField
	for _, c := range mappings {
		fv := read(c.Field)
		v, ok, err := encodeColumn(c.Kind, fv.text, fv.list)
		if err != nil {
			dropped = append(dropped, DroppedField{Field: c.Field, Value: fv.text, Reason: err.Error()})
			continue
		}
		if ok {
			values[c.ColumnID] = v
		}
	}
	return values, dropped
}

// dateLayouts are the date spellings accepted from the form; values are sent as YYYY-MM-DD.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "January 2, 2006", "Jan 2, 2006"}

var fieldCheck = validator.New()

func encodeColumn(kind ColumnKind, text string, list []string) (interface{}, bool, error) {
	text = strings.TrimSpace(text)
	if kind == KindDropdown {
		labels := make([]string, 0, len(list)+1)
		for _, l := range list {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
		if text != "" {
			labels = append(labels, text)
		}
		if len(labels) == 0 {
			return nil, false, nil
		}
		return map[string][]string{"labels": labels}, true, nil
	}
	if text == "" {
		return nil, false, nil
	}
	switch kind {
	case KindLongText:
		return map[string]string{"text": text}, true, nil
	case KindEmail:
		if err := fieldCheck.Var(text, "email"); err != nil {
			return nil, false, fmt.Errorf("not an email address")
		}
		return map[string]string{"email": text, "text": text}, true, nil
	case KindPhone:
		return map[string]string{"phone": text, "countryShortName": "US"}, true, nil
	case KindDate:
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, text); err == nil {
				return map[string]string{"date": d.Format("2006-01-02")}, true, nil
			}
		}
		return nil, false, fmt.Errorf("not a date")
	case KindNumbers:
		n := strings.ReplaceAll(text, ",", "")
		if _, err := strconv.ParseFloat(n, 64); err != nil {
			return nil, false, fmt.Errorf("not a number")
		}
		return n, true, nil
	case KindStatus:
		return map[string]string{"label": text}, true, nil
	default:
		return text, true, nil
	}
}
