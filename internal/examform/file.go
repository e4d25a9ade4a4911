package examform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/examdesk/internal/domain"
	"gopkg.in/yaml.v3"
)

// File is an exam described in one document, for non-interactive creation.
type File struct {
	Status     domain.ExamStatus         `json:"status"`
	Basic      BasicInfo                 `json:"basic"`
	Audience   Audience                  `json:"audience"`
	Schedule   Schedule                  `json:"schedule"`
	Structure  []domain.StructureSection `json:"structure"`
	Questions  []domain.QuestionItem     `json:"questions"`
	FacultyIDs []string                  `json:"facultyIds"`
}

// LoadFile reads an exam file. Files ending in .yaml or .yml are YAML, any
// other file is JSON. Status defaults to DRAFT.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading exam file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return File{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	var f File
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.Status == "" {
		f.Status = domain.StatusDraft
	}
	return f, nil
}

// yamlToJSON re-encodes a YAML document as JSON so the question union is
// decoded by a single set of rules.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return json.Marshal(plainDates(doc))
}

// ParseQuestions decodes a YAML (or JSON) list of questions, the same shape
// as the questions key of an exam file.
func ParseQuestions(data []byte) ([]domain.QuestionItem, error) {
	var list []any
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing questions: %w", err)
	}
	raw, err := json.Marshal(plainDates(list))
	if err != nil {
		return nil, fmt.Errorf("parsing questions: %w", err)
	}
	var items []domain.QuestionItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parsing questions: %w", err)
	}
	return items, nil
}

// ParseSections reads one structure section per line, written as
// "name, type, count, marks each". Blank lines are skipped.
func ParseSections(text string) ([]domain.StructureSection, error) {
	var sections []domain.StructureSection
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("line %d: want name, type, count, marks each", n+1)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		count, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: count %q is not a number", n+1, parts[2])
		}
		marks, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: marks %q is not a number", n+1, parts[3])
		}
		sections = append(sections, domain.StructureSection{
			Name:         parts[0],
			QuestionType: domain.QuestionType(strings.ToUpper(parts[1])),
			Count:        count,
			MarksEach:    marks,
		})
	}
	return sections, nil
}

// FormatSections is the inverse of ParseSections.
func FormatSections(sections []domain.StructureSection) string {
	lines := make([]string, len(sections))
	for i, s := range sections {
		lines[i] = fmt.Sprintf("%s, %s, %d, %d", s.Name, s.QuestionType, s.Count, s.MarksEach)
	}
	return strings.Join(lines, "\n")
}

// plainDates turns unquoted YAML timestamps back into the date strings the
// schedule fields expect.
func plainDates(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = plainDates(item)
		}
	case []any:
		for i, item := range t {
			t[i] = plainDates(item)
		}
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format(DateLayout)
		}
		return t.Format(time.RFC3339)
	}
	return v
}

// stepValues returns the value of key with the fields copied from the basic
// step filled in.
func (f File) stepValues(key StepKey) any {
	switch key {
	case StepBasic:
		return f.Basic
	case StepAudience:
		return f.Audience
	case StepSchedule:
		s := f.Schedule
		s.Mode = f.Basic.ScheduleMode
		return s
	case StepStructure:
		return Structure{TotalMarks: f.Basic.TotalMarks, Sections: f.Structure}
	case StepQuestions:
		return QuestionSet{TotalMarks: f.Basic.TotalMarks, Questions: f.Questions}
	case StepFaculty:
		return FacultyAssignment{FacultyIDs: f.FacultyIDs}
	}
	return nil
}
