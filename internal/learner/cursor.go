package learner

import (
	"fmt"
	"strings"
)

// Kind is the state of a subject cursor.
type Kind int

const (
	// NotStarted is the zero value; it is never persisted and resolves to the
	// subject's first lesson.
	NotStarted Kind = iota
	// InLesson points at a specific lesson.
	InLesson
	// AwaitingAssessment means every reachable lesson was read.
	AwaitingAssessment
	// Completed means the assessment was graded. It is terminal.
	Completed
)

func (k Kind) String() string {
	switch k {
	case NotStarted:
		return "not_started"
	case InLesson:
		return "in_lesson"
	case AwaitingAssessment:
		return "awaiting_assessment"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

const (
	lessonPrefix   = "lesson:"
	assessmentText = "assessment"
	completedText  = "completed"
)

// Cursor is the learner's position within a subject. LessonID is set only for
// InLesson.
type Cursor struct {
	Kind     Kind
	LessonID string
}

// Lesson returns a cursor pointing at lessonID.
func Lesson(lessonID string) Cursor {
	return Cursor{Kind: InLesson, LessonID: lessonID}
}

// Assessment returns the awaiting-assessment cursor.
func Assessment() Cursor {
	return Cursor{Kind: AwaitingAssessment}
}

// Done returns the completed cursor.
func Done() Cursor {
	return Cursor{Kind: Completed}
}

func (c Cursor) String() string {
	if c.Kind == InLesson {
		return lessonPrefix + c.LessonID
	}
	return c.Kind.String()
}

// MarshalText encodes the cursor as "lesson:<id>", "assessment" or
// "completed".
func (c Cursor) MarshalText() ([]byte, error) {
	switch c.Kind {
	case InLesson:
		if c.LessonID == "" {
			return nil, fmt.Errorf("lesson cursor without lesson id")
		}
		return []byte(lessonPrefix + c.LessonID), nil
	case AwaitingAssessment:
		return []byte(assessmentText), nil
	case Completed:
		return []byte(completedText), nil
	default:
		return nil, fmt.Errorf("cursor of kind %s is not persisted", c.Kind)
	}
}

// UnmarshalText is the inverse of MarshalText.
func (c *Cursor) UnmarshalText(text []byte) error {
	s := string(text)
	switch {
	case s == assessmentText:
		*c = Assessment()
	case s == completedText:
		*c = Done()
	case strings.HasPrefix(s, lessonPrefix) && len(s) > len(lessonPrefix):
		*c = Lesson(strings.TrimPrefix(s, lessonPrefix))
	default:
		return fmt.Errorf("invalid cursor %q", s)
	}
	return nil
}
