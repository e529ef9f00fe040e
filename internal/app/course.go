package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/p-n-ai/pim/internal/assessment"
	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/shared"
)

// errNothingToStudy ends a session when the catalog offers no course or the
// course has no subjects.
var errNothingToStudy = errors.New("nothing to study")

// enrolledCourse resolves the user's course, asking them to enroll first when
// they have none or their course left the catalog.
func (a *App) enrolledCourse(ctx context.Context, u *learner.User) (*catalog.Course, error) {
	if u.Enrolled() {
		course, err := u.Course(a.catalog)
		if err == nil {
			a.console.Message("You are enrolled in the course " + course.Name + ".")
			return course, nil
		}
		if !shared.IsNotFound(err) {
			return nil, err
		}
		slog.Warn("enrolled course missing from catalog", "username", u.Username, "course_id", u.CourseID)
		a.console.Message("Your course is no longer offered. Please choose another one.")
	}
	return a.selectCourse(ctx, u)
}

func (a *App) selectCourse(ctx context.Context, u *learner.User) (*catalog.Course, error) {
	courses := a.catalog.Courses()
	if len(courses) == 0 {
		a.console.Menu(titleCourse, "No courses are available at the moment.")
		_ = a.console.Pause(ctx, promptContinue)
		return nil, errNothingToStudy
	}

	lines := []string{
		"You are not enrolled in any course.",
		"",
		"Choose the course you want:",
	}
	names := make([]string, len(courses))
	for i, c := range courses {
		names[i] = c.Name
	}
	lines = append(lines, numbered(names)...)

	var selected *catalog.Course
	for selected == nil {
		a.console.Menu(titleCourse, lines...)
		i, err := a.chooseIndex(ctx, len(courses))
		if errors.Is(err, shared.ErrInvalidSelection) {
			continue
		}
		if err != nil {
			return nil, err
		}

		ok, err := a.confirm(ctx, titleCourse, fmt.Sprintf("You chose %s. Is that right? [Y/n]", courses[i].Name))
		if shared.IsInterrupted(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ok {
			selected = courses[i]
		}
	}

	prev := u.CourseID
	u.Enroll(selected.ID)
	if err := a.users.Save(ctx, u); err != nil {
		u.Enroll(prev)
		return nil, fmt.Errorf("save enrollment: %w", err)
	}
	slog.Info("user enrolled", "username", u.Username, "course_id", selected.ID)

	course, err := u.Course(a.catalog)
	if err != nil {
		return nil, err
	}
	a.console.Menu(titleCourse,
		fmt.Sprintf("%s, you are now enrolled in the course %q.", u.FirstName(), course.Name),
	)
	if err := a.console.Pause(ctx, promptContinue); err != nil {
		return nil, err
	}
	return course, nil
}

func (a *App) selectSubject(ctx context.Context, u *learner.User, course *catalog.Course) (*catalog.Subject, error) {
	if len(course.Subjects) == 0 {
		a.console.Menu(titleSubject, "This course has no subjects yet.")
		_ = a.console.Pause(ctx, promptContinue)
		return nil, errNothingToStudy
	}

	for {
		lines := []string{course.Name, "", "Choose a subject (Ctrl+C to leave):", ""}
		labels := make([]string, len(course.Subjects))
		for i, s := range course.Subjects {
			labels[i] = s.Name + a.subjectStatus(u, s)
		}
		lines = append(lines, numbered(labels)...)
		a.console.Menu(titleSubject, lines...)

		i, err := a.chooseIndex(ctx, len(course.Subjects))
		if errors.Is(err, shared.ErrInvalidSelection) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s := course.Subjects[i]
		ok, err := a.confirm(ctx, titleSubject, fmt.Sprintf("You chose %s. Is that right? [Y/n]", s.Name))
		if shared.IsInterrupted(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ok {
			return s, nil
		}
	}
}

func (a *App) subjectStatus(u *learner.User, s *catalog.Subject) string {
	if g, ok := a.tracker.Grade(u, s); ok && a.tracker.IsCompleted(u, s) {
		return fmt.Sprintf(" (completed, grade %.1f/%g)", assessment.DisplayGrade(g, s.MaxGrade), s.MaxGrade)
	}
	if _, started := u.Cursor(s.ID); !started {
		return ""
	}
	if a.tracker.CurrentCursor(u, s).Kind == learner.AwaitingAssessment {
		return " (assessment pending)"
	}
	return " (in progress)"
}

// chooseIndex reads a 1-based menu number and returns it 0-based.
func (a *App) chooseIndex(ctx context.Context, n int) (int, error) {
	options := make([]string, n)
	for i := range options {
		options[i] = strconv.Itoa(i + 1)
	}
	choice, err := a.console.Choose(ctx, promptChoice, options, "")
	if errors.Is(err, shared.ErrInvalidSelection) {
		a.console.Message(msgInvalid)
		return 0, err
	}
	if err != nil {
		return 0, err
	}
	i, _ := strconv.Atoi(choice)
	return i - 1, nil
}

// confirm asks a yes/no question that defaults to yes.
func (a *App) confirm(ctx context.Context, title, question string) (bool, error) {
	a.console.Menu(title, question)
	for {
		choice, err := a.console.Choose(ctx, promptChoice, []string{"y", "n"}, "y")
		if errors.Is(err, shared.ErrInvalidSelection) {
			a.console.Message(msgInvalid)
			continue
		}
		if err != nil {
			return false, err
		}
		return choice == "y", nil
	}
}

func numbered(items []string) []string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("[%d] %s", i+1, item)
	}
	return lines
}
