package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Choice is an answer letter. Only the letters a to e are used.
type Choice string

const (
	ChoiceA Choice = "a"
	ChoiceB Choice = "b"
	ChoiceC Choice = "c"
	ChoiceD Choice = "d"
	ChoiceE Choice = "e"
)

// Choices lists the answer alphabet in display order.
var Choices = []Choice{ChoiceA, ChoiceB, ChoiceC, ChoiceD, ChoiceE}

// Valid reports whether c belongs to the answer alphabet.
func (c Choice) Valid() bool {
	for _, v := range Choices {
		if c == v {
			return true
		}
	}
	return false
}

// Option is one answer of a question.
type Option struct {
	Letter Choice
	Text   string
}

// Options keeps answers in the order they appear in the source document.
type Options []Option

// UnmarshalYAML decodes a letter → text mapping without losing its order.
func (o *Options) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: options must be a mapping", value.Line)
	}
	opts := make(Options, 0, len(value.Content)/2)
	seen := make(map[Choice]bool, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		letter := Choice(value.Content[i].Value)
		if !letter.Valid() {
			return fmt.Errorf("line %d: invalid choice letter %q", value.Content[i].Line, letter)
		}
		if seen[letter] {
			return fmt.Errorf("line %d: duplicate choice letter %q", value.Content[i].Line, letter)
		}
		seen[letter] = true
		opts = append(opts, Option{Letter: letter, Text: value.Content[i+1].Value})
	}
	*o = opts
	return nil
}

// Text returns the option text for a letter.
func (o Options) Text(letter Choice) (string, bool) {
	for _, opt := range o {
		if opt.Letter == letter {
			return opt.Text, true
		}
	}
	return "", false
}

// Letters returns the option letters in display order.
func (o Options) Letters() []Choice {
	letters := make([]Choice, len(o))
	for i, opt := range o {
		letters[i] = opt.Letter
	}
	return letters
}

// Question is a single multiple-choice item of an assessment.
type Question struct {
	Index   int     `yaml:"index"`
	Weight  int     `yaml:"weight"`
	Text    string  `yaml:"question"`
	Options Options `yaml:"options"`
	Answer  Choice  `yaml:"answer"`
}

// Assessment is the graded test that closes a subject. Questions are sorted
// by Index.
type Assessment struct {
	ID        string     `yaml:"id"`
	Questions []Question `yaml:"questions"`
}

// TotalWeight sums the weights of all questions.
func (a Assessment) TotalWeight() int {
	total := 0
	for _, q := range a.Questions {
		total += q.Weight
	}
	return total
}

// Lesson is a unit of reading material. Position gives its place in the
// subject; successors are found by Position+1.
type Lesson struct {
	ID       string
	Title    string
	Content  string
	Position int
}

// Subject is a gradable unit of a course. Lessons are sorted by Position.
type Subject struct {
	ID         string
	Name       string
	MaxGrade   float64
	Lessons    []Lesson
	Assessment Assessment
}

// FirstLesson returns the lesson with the lowest position.
func (s *Subject) FirstLesson() (Lesson, bool) {
	if len(s.Lessons) == 0 {
		return Lesson{}, false
	}
	return s.Lessons[0], true
}

// Lesson finds a lesson by id.
func (s *Subject) Lesson(id string) (Lesson, bool) {
	for _, l := range s.Lessons {
		if l.ID == id {
			return l, true
		}
	}
	return Lesson{}, false
}

// LessonAt finds the lesson stored at position.
func (s *Subject) LessonAt(position int) (Lesson, bool) {
	for _, l := range s.Lessons {
		if l.Position == position {
			return l, true
		}
	}
	return Lesson{}, false
}

// NextLesson returns the lesson at the position following lessonID. The
// second result is false when no such lesson exists, including when the
// numbering has a gap.
func (s *Subject) NextLesson(lessonID string) (Lesson, bool) {
	cur, ok := s.Lesson(lessonID)
	if !ok {
		return Lesson{}, false
	}
	return s.LessonAt(cur.Position + 1)
}

// Course is an immutable set of subjects sorted by name.
type Course struct {
	ID       string
	Name     string
	Subjects []*Subject
}

// Subject finds a subject by id.
func (c *Course) Subject(id string) (*Subject, bool) {
	for _, s := range c.Subjects {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}
