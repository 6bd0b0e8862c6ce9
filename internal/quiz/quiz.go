package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Quiz is an ordered set of numeric questions hosted in one room.
type Quiz struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Question has a single numeric answer. Answer never leaves the server
// before the host reveals it.
type Question struct {
	ID     float64 `json:"id"`
	Text   string  `json:"text"`
	Answer float64 `json:"answer"`
}

// Len returns the number of questions.
func (q Quiz) Len() int {
	return len(q.Questions)
}

// ValidationError describes why a quiz document was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Parse decodes and validates a raw quiz document.
// Numbers must be JSON numbers; strings that look numeric are rejected.
func Parse(data []byte) (Quiz, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Quiz{}, invalid("Quiz must be valid JSON")
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return Quiz{}, invalid("Quiz must be an object")
	}

	title, ok := obj["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return Quiz{}, invalid("Quiz must have a title (string)")
	}

	rawQuestions, ok := obj["questions"].([]any)
	if !ok || len(rawQuestions) == 0 {
		return Quiz{}, invalid("Quiz must have a non-empty questions array")
	}

	q := Quiz{Title: title, Questions: make([]Question, 0, len(rawQuestions))}
	for i, raw := range rawQuestions {
		n := i + 1
		fields, ok := raw.(map[string]any)
		if !ok {
			return Quiz{}, invalid("Question %d must be an object", n)
		}

		id, ok := number(fields["id"])
		if !ok || id == 0 {
			return Quiz{}, invalid("Question %d must have an id (number)", n)
		}

		text, ok := fields["text"].(string)
		if !ok || strings.TrimSpace(text) == "" {
			return Quiz{}, invalid("Question %d must have text (string)", n)
		}

		answer, ok := number(fields["answer"])
		if !ok {
			return Quiz{}, invalid("Question %d must have a numeric answer", n)
		}

		q.Questions = append(q.Questions, Question{ID: id, Text: text, Answer: answer})
	}

	if err := Validate(q); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

// Validate checks the invariants of an already decoded quiz.
func Validate(q Quiz) error {
	if strings.TrimSpace(q.Title) == "" {
		return invalid("Quiz must have a title (string)")
	}
	if len(q.Questions) == 0 {
		return invalid("Quiz must have a non-empty questions array")
	}

	seen := make(map[float64]int, len(q.Questions))
	for i, question := range q.Questions {
		n := i + 1
		if question.ID == 0 || !finite(question.ID) {
			return invalid("Question %d must have an id (number)", n)
		}
		if prev, dup := seen[question.ID]; dup {
			return invalid("Question %d reuses the id of question %d", n, prev)
		}
		seen[question.ID] = n

		if strings.TrimSpace(question.Text) == "" {
			return invalid("Question %d must have text (string)", n)
		}
		if !finite(question.Answer) {
			return invalid("Question %d must have a numeric answer", n)
		}
	}
	return nil
}

func number(v any) (float64, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := num.Float64()
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
