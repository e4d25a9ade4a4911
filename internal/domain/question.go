package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// QuestionType discriminates the Question variants on the wire.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "MCQ"
	QuestionTrueFalse   QuestionType = "TRUE_FALSE"
	QuestionShortAnswer QuestionType = "SHORT_ANSWER"
	QuestionLongAnswer  QuestionType = "LONG_ANSWER"
)

// ValidQuestionTypes is the canonical set of question type strings.
var ValidQuestionTypes = map[string]bool{
	string(QuestionMCQ):         true,
	string(QuestionTrueFalse):   true,
	string(QuestionShortAnswer): true,
	string(QuestionLongAnswer):  true,
}

var ErrUnknownQuestionType = errors.New("unknown question type")

// Question is one authored question. The set of implementations is closed:
// MCQ, TrueFalse, ShortAnswer and LongAnswer.
type Question interface {
	Type() QuestionType
	Marks() int
	question()
}

type MCQ struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Points       int      `json:"marks"`
}

type TrueFalse struct {
	Text   string `json:"text"`
	Answer bool   `json:"answer"`
	Points int    `json:"marks"`
}

type ShortAnswer struct {
	Text           string `json:"text"`
	ExpectedAnswer string `json:"expectedAnswer,omitempty"`
	MaxWords       int    `json:"maxWords,omitempty"`
	Points         int    `json:"marks"`
}

type LongAnswer struct {
	Text     string `json:"text"`
	Rubric   string `json:"rubric,omitempty"`
	MinWords int    `json:"minWords,omitempty"`
	Points   int    `json:"marks"`
}

func (MCQ) Type() QuestionType         { return QuestionMCQ }
func (TrueFalse) Type() QuestionType   { return QuestionTrueFalse }
func (ShortAnswer) Type() QuestionType { return QuestionShortAnswer }
func (LongAnswer) Type() QuestionType  { return QuestionLongAnswer }

func (q MCQ) Marks() int         { return q.Points }
func (q TrueFalse) Marks() int   { return q.Points }
func (q ShortAnswer) Marks() int { return q.Points }
func (q LongAnswer) Marks() int  { return q.Points }

func (MCQ) question()         {}
func (TrueFalse) question()   {}
func (ShortAnswer) question() {}
func (LongAnswer) question()  {}

// ValidateQuestion checks the variant-specific rules of q.
func ValidateQuestion(q Question) error {
	var problems []string
	text := ""
	switch v := q.(type) {
	case MCQ:
		text = v.Text
		if len(v.Options) < 2 {
			problems = append(problems, "needs at least 2 options")
		}
		for i, opt := range v.Options {
			if strings.TrimSpace(opt) == "" {
				problems = append(problems, fmt.Sprintf("option %d is empty", i+1))
			}
		}
		if v.CorrectIndex < 0 || v.CorrectIndex >= len(v.Options) {
			problems = append(problems, "correct option is out of range")
		}
	case TrueFalse:
		text = v.Text
	case ShortAnswer:
		text = v.Text
		if v.MaxWords < 0 {
			problems = append(problems, "max words cannot be negative")
		}
	case LongAnswer:
		text = v.Text
		if v.MinWords < 0 {
			problems = append(problems, "min words cannot be negative")
		}
	case nil:
		return errors.New("question is empty")
	default:
		return fmt.Errorf("%w: %T", ErrUnknownQuestionType, q)
	}

	if strings.TrimSpace(text) == "" {
		problems = append(problems, "text is required")
	}
	if q.Marks() <= 0 {
		problems = append(problems, "marks must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s question: %s", q.Type(), strings.Join(problems, "; "))
	}
	return nil
}

// QuestionItem carries a Question through JSON using a "type" discriminator.
type QuestionItem struct {
	Question
}

func (it QuestionItem) MarshalJSON() ([]byte, error) {
	if it.Question == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(it.Question)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(it.Question.Type())
	fields["type"] = typ
	return json.Marshal(fields)
}

func (it *QuestionItem) UnmarshalJSON(data []byte) error {
	var head struct {
		Type QuestionType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	var err error
	switch head.Type {
	case QuestionMCQ:
		var q MCQ
		err = json.Unmarshal(data, &q)
		it.Question = q
	case QuestionTrueFalse:
		var q TrueFalse
		err = json.Unmarshal(data, &q)
		it.Question = q
	case QuestionShortAnswer:
		var q ShortAnswer
		err = json.Unmarshal(data, &q)
		it.Question = q
	case QuestionLongAnswer:
		var q LongAnswer
		err = json.Unmarshal(data, &q)
		it.Question = q
	default:
		return fmt.Errorf("%w: %q", ErrUnknownQuestionType, head.Type)
	}
	return err
}

// TotalQuestionMarks sums the marks of every question.
func TotalQuestionMarks(items []QuestionItem) int {
	total := 0
	for _, it := range items {
		if it.Question != nil {
			total += it.Marks()
		}
	}
	return total
}
