package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pim/internal/assessment"
	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/progress"
	"github.com/p-n-ai/pim/internal/shared"
	"github.com/p-n-ai/pim/internal/terminal"
)

// errBack returns from a subject to the subject menu.
var errBack = errors.New("back to subject menu")

// openSubject resumes the subject where the user stopped. It returns when the
// user goes back to the subject menu.
func (a *App) openSubject(ctx context.Context, u *learner.User, s *catalog.Subject) error {
	for {
		cursor := a.tracker.CurrentCursor(u, s)
		slog.Debug("subject opened", "username", u.Username, "subject_id", s.ID, "cursor", cursor.String())

		var err error
		switch cursor.Kind {
		case learner.InLesson:
			err = a.study(ctx, u, s, cursor.LessonID)
		case learner.AwaitingAssessment:
			err = a.assess(ctx, u, s)
		case learner.Completed:
			return a.reviewMenu(ctx, u, s)
		}
		if err != nil {
			return err
		}
	}
}

// study shows one lesson and advances past it once the user confirms.
func (a *App) study(ctx context.Context, u *learner.User, s *catalog.Subject, lessonID string) error {
	lesson, ok := s.Lesson(lessonID)
	if !ok {
		return fmt.Errorf("lesson %q: %w", lessonID, shared.ErrNotFound)
	}

	a.showLesson(s, lesson)
	if err := a.console.Pause(ctx, "Press Enter to finish the lesson, Ctrl+C to go back."); err != nil {
		return err
	}

	next, err := a.tracker.AdvanceAfterLesson(ctx, u, s, lessonID)
	if errors.Is(err, shared.ErrPersistence) {
		a.console.Message("Your progress could not be saved. Please try again.")
		return a.pauseOrUnwind(ctx)
	}
	if err != nil {
		return err
	}
	if next.Kind == learner.AwaitingAssessment {
		a.console.Menu(s.Name, "You have finished every lesson of this subject.", "The assessment is next.")
		return a.console.Pause(ctx, promptContinue)
	}
	return nil
}

// assess runs the assessment, or leaves when the user is not ready.
func (a *App) assess(ctx context.Context, u *learner.User, s *catalog.Subject) error {
	ready, err := a.confirm(ctx, s.Name, fmt.Sprintf("The assessment has %d questions. Start now? [Y/n]", len(s.Assessment.Questions)))
	if err != nil {
		return err
	}
	if !ready {
		return errBack
	}

	out, err := a.tracker.TakeAssessment(ctx, u, s, consoleAsker{console: a.console})
	if errors.Is(err, shared.ErrPersistence) {
		a.console.Menu(titleResult,
			"Your answers could not be saved, so the assessment is not complete.",
			"Please try again later.",
		)
		_ = a.console.Pause(ctx, promptContinue)
		return errBack
	}
	if err != nil {
		return err
	}

	a.showOutcome(s, out)
	return a.pauseOrUnwind(ctx)
}

// reviewMenu is shown for completed subjects. Nothing here changes the grade.
func (a *App) reviewMenu(ctx context.Context, u *learner.User, s *catalog.Subject) error {
	for {
		g, _ := a.tracker.Grade(u, s)
		a.console.Menu(s.Name,
			fmt.Sprintf("Subject completed. Grade: %.1f / %g", assessment.DisplayGrade(g, s.MaxGrade), s.MaxGrade),
			"",
			"[l] Review lessons",
			"[a] Review assessment",
			"[b] Back",
		)

		choice, err := a.console.Choose(ctx, promptChoice, []string{"l", "a", "b"}, "b")
		if errors.Is(err, shared.ErrInvalidSelection) {
			continue
		}
		if err != nil {
			return err
		}

		switch choice {
		case "l":
			err = a.reviewLessons(ctx, s)
		case "a":
			var out progress.Outcome
			out, err = a.tracker.TakeAssessment(ctx, u, s, consoleAsker{console: a.console})
			if err == nil {
				a.showOutcome(s, out)
				err = a.console.Pause(ctx, promptContinue)
			}
		case "b":
			return nil
		}
		if err != nil && !shared.IsInterrupted(err) {
			return err
		}
	}
}

func (a *App) reviewLessons(ctx context.Context, s *catalog.Subject) error {
	titles := make([]string, len(s.Lessons))
	for i, l := range s.Lessons {
		titles[i] = l.Title
	}
	for {
		a.console.Menu(titleReview, append([]string{"Choose a lesson (Ctrl+C to go back):", ""}, numbered(titles)...)...)
		i, err := a.chooseIndex(ctx, len(s.Lessons))
		if errors.Is(err, shared.ErrInvalidSelection) {
			continue
		}
		if err != nil {
			return err
		}
		a.showLesson(s, s.Lessons[i])
		if err := a.console.Pause(ctx, promptContinue); err != nil {
			return err
		}
	}
}

func (a *App) showLesson(s *catalog.Subject, l catalog.Lesson) {
	lines := []string{l.Title, ""}
	lines = append(lines, strings.Split(strings.TrimRight(l.Content, "\n"), "\n")...)
	a.console.Menu(s.Name, lines...)
}

func (a *App) showOutcome(s *catalog.Subject, out progress.Outcome) {
	lines := []string{}
	if out.Recorded {
		lines = append(lines, fmt.Sprintf("Your grade: %.1f / %g", out.Display, s.MaxGrade))
	} else {
		lines = append(lines,
			fmt.Sprintf("This attempt: %.1f / %g", assessment.DisplayGrade(out.Score, s.MaxGrade), s.MaxGrade),
			fmt.Sprintf("Your grade was already recorded and stays at %.1f / %g.", out.Display, s.MaxGrade),
		)
	}
	lines = append(lines, "")

	for _, item := range out.Review {
		mark := "wrong"
		if item.Correct {
			mark = "right"
		}
		lines = append(lines,
			fmt.Sprintf("%d. %s [%s]", item.Number, item.Question.Text, mark),
			fmt.Sprintf("   Your answer: (%s) %s", item.Selected, item.SelectedText),
		)
		if !item.Correct {
			lines = append(lines, fmt.Sprintf("   Correct answer: (%s) %s", item.Question.Answer, item.CorrectText))
		}
	}
	a.console.Menu(titleResult, lines...)
}

// pauseOrUnwind waits for Enter and then returns to the subject menu.
func (a *App) pauseOrUnwind(ctx context.Context) error {
	if err := a.console.Pause(ctx, promptContinue); err != nil {
		return err
	}
	return errBack
}

// consoleAsker presents questions on the console.
type consoleAsker struct {
	console terminal.Console
}

func (c consoleAsker) Ask(ctx context.Context, q catalog.Question, number, total int) (catalog.Choice, error) {
	lines := []string{q.Text, ""}
	options := make([]string, len(q.Options))
	for i, o := range q.Options {
		lines = append(lines, fmt.Sprintf("(%s) %s", o.Letter, o.Text))
		options[i] = string(o.Letter)
	}
	c.console.Menu(fmt.Sprintf("Question %d of %d", number, total), lines...)

	choice, err := c.console.Choose(ctx, promptChoice, options, "")
	if errors.Is(err, shared.ErrInvalidSelection) {
		c.console.Message(msgInvalid)
	}
	return catalog.Choice(choice), err
}
