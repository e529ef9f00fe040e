// Package learner holds the user record, its persisted form and the stores
// that load and save it.
package learner

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/shared"
)

// MinimumAge is the youngest age accepted at registration.
const MinimumAge = 14

// Gender is optional; the zero value means unset.
type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is one of the known values or unset.
func (g Gender) Valid() bool {
	switch g {
	case GenderUnset, GenderMale, GenderFemale:
		return true
	}
	return false
}

// User is a learner and everything the platform knows about their progress.
// Usernames are stored case-folded.
type User struct {
	Username string
	FullName string
	Age      int
	Gender   Gender
	City     string
	CourseID string

	// Progress maps subject id to cursor. A missing entry means the subject
	// was never started.
	Progress map[string]Cursor
	// Grades maps subject id to the score in [0, 1].
	Grades map[string]float64

	course *catalog.Course
}

// Profile is the registration data of a new user.
type Profile struct {
	Username string
	FullName string
	Age      int
	Gender   Gender
	City     string
}

// New validates a profile and returns an unenrolled user.
func New(p Profile) (*User, error) {
	username := NormalizeUsername(p.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", shared.ErrValidation)
	}
	fullName := NormalizeFullName(p.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("full name is required: %w", shared.ErrValidation)
	}
	if p.Age < MinimumAge {
		return nil, fmt.Errorf("age %d is below the minimum of %d: %w", p.Age, MinimumAge, shared.ErrValidation)
	}
	if !p.Gender.Valid() {
		return nil, fmt.Errorf("unknown gender %q: %w", p.Gender, shared.ErrValidation)
	}

	return &User{
		Username: username,
		FullName: fullName,
		Age:      p.Age,
		Gender:   p.Gender,
		City:     strings.TrimSpace(p.City),
		Progress: make(map[string]Cursor),
		Grades:   make(map[string]float64),
	}, nil
}

// NormalizeUsername trims and case-folds a username so lookups are
// case-insensitive.
func NormalizeUsername(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// NormalizeFullName collapses whitespace and title-cases each word.
func NormalizeFullName(s string) string {
	return cases.Title(language.Und).String(strings.Join(strings.Fields(s), " "))
}

// FirstName returns the first word of the full name.
func (u *User) FirstName() string {
	first, _, _ := strings.Cut(u.FullName, " ")
	return first
}

// Enrolled reports whether the user picked a course.
func (u *User) Enrolled() bool {
	return u.CourseID != ""
}

// Enroll sets the course id. The memoized course is re-resolved on the next
// call to Course because its id no longer matches.
func (u *User) Enroll(courseID string) {
	u.CourseID = courseID
}

// Course resolves the enrolled course, reusing the last lookup while the
// course id is unchanged.
func (u *User) Course(cat *catalog.Catalog) (*catalog.Course, error) {
	if !u.Enrolled() {
		return nil, fmt.Errorf("user %q is not enrolled: %w", u.Username, shared.ErrNotFound)
	}
	if u.course != nil && u.course.ID == u.CourseID {
		return u.course, nil
	}
	course, err := cat.Course(u.CourseID)
	if err != nil {
		return nil, err
	}
	u.course = course
	return course, nil
}

// Cursor returns the stored cursor for a subject.
func (u *User) Cursor(subjectID string) (Cursor, bool) {
	c, ok := u.Progress[subjectID]
	return c, ok
}

// SetCursor stores a cursor. NotStarted removes the entry.
func (u *User) SetCursor(subjectID string, c Cursor) {
	if u.Progress == nil {
		u.Progress = make(map[string]Cursor)
	}
	if c.Kind == NotStarted {
		delete(u.Progress, subjectID)
		return
	}
	u.Progress[subjectID] = c
}

// Grade returns the recorded score for a subject.
func (u *User) Grade(subjectID string) (float64, bool) {
	g, ok := u.Grades[subjectID]
	return g, ok
}

// SetGrade records a score.
func (u *User) SetGrade(subjectID string, score float64) {
	if u.Grades == nil {
		u.Grades = make(map[string]float64)
	}
	u.Grades[subjectID] = score
}

// ClearGrade removes a score. Used to roll back an uncommitted grade.
func (u *User) ClearGrade(subjectID string) {
	delete(u.Grades, subjectID)
}

// Clone returns a deep copy without the memoized course.
func (u *User) Clone() *User {
	c := *u
	c.course = nil
	c.Progress = make(map[string]Cursor, len(u.Progress))
	for k, v := range u.Progress {
		c.Progress[k] = v
	}
	c.Grades = make(map[string]float64, len(u.Grades))
	for k, v := range u.Grades {
		c.Grades[k] = v
	}
	return &c
}

// apply copies the persisted fields of other into u in place.
func (u *User) apply(other *User) {
	fresh := other.Clone()
	fresh.course = u.course
	*u = *fresh
}
