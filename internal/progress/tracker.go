// Package progress moves a learner through a subject: lesson by lesson, then
// to the assessment, then to completion. The tracker mutates the in-memory
// user and commits every change through a learner.Store.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/p-n-ai/pim/internal/assessment"
	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/shared"
)

const (
	defaultSaveAttempts  = 3
	defaultRetryInterval = 200 * time.Millisecond
)

// TrackerConfig holds dependencies for the tracker.
type TrackerConfig struct {
	Store         learner.Store
	Events        EventLogger
	SaveAttempts  int           // attempts for the grading commit (default 3)
	RetryInterval time.Duration // first backoff interval (default 200ms)
}

// Tracker applies the progression rules.
type Tracker struct {
	store         learner.Store
	events        EventLogger
	saveAttempts  int
	retryInterval time.Duration
}

// NewTracker creates a tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	store := cfg.Store
	if store == nil {
		store = learner.NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	attempts := cfg.SaveAttempts
	if attempts <= 0 {
		attempts = defaultSaveAttempts
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	return &Tracker{
		store:         store,
		events:        events,
		saveAttempts:  attempts,
		retryInterval: interval,
	}
}

// Outcome is the result of one pass through an assessment.
type Outcome struct {
	Result assessment.RawResult
	Review []assessment.ReviewItem
	// Score is what this pass earned.
	Score float64
	// Grade is the stored grade after the pass. It differs from Score when
	// an earlier grade was kept.
	Grade float64
	// Display is Grade on the subject's scale.
	Display float64
	// Recorded is true when this pass's score became the stored grade.
	Recorded bool
}

// CurrentCursor returns where the user stands in the subject. A subject that
// was never started resolves to its first lesson.
func (t *Tracker) CurrentCursor(u *learner.User, s *catalog.Subject) learner.Cursor {
	c, ok := u.Cursor(s.ID)
	if !ok {
		return start(s)
	}
	if c.Kind == learner.InLesson {
		if _, ok := s.Lesson(c.LessonID); !ok {
			slog.Warn("stored lesson no longer in subject, restarting",
				"username", u.Username,
				"subject_id", s.ID,
				"lesson_id", c.LessonID,
			)
			return start(s)
		}
	}
	return c
}

// IsCompleted reports whether the subject's assessment was graded.
func (t *Tracker) IsCompleted(u *learner.User, s *catalog.Subject) bool {
	return t.CurrentCursor(u, s).Kind == learner.Completed
}

// Grade returns the stored grade of the subject.
func (t *Tracker) Grade(u *learner.User, s *catalog.Subject) (float64, bool) {
	return u.Grade(s.ID)
}

// AdvanceAfterLesson marks lessonID as read and persists the next cursor.
// Repeating the call for a lesson the user has already moved past returns
// the stored cursor without saving.
func (t *Tracker) AdvanceAfterLesson(ctx context.Context, u *learner.User, s *catalog.Subject, lessonID string) (learner.Cursor, error) {
	lesson, ok := s.Lesson(lessonID)
	if !ok {
		return learner.Cursor{}, fmt.Errorf("lesson %q in subject %q: %w", lessonID, s.ID, shared.ErrNotFound)
	}

	current := t.CurrentCursor(u, s)
	switch current.Kind {
	case learner.AwaitingAssessment, learner.Completed:
		return current, nil
	case learner.InLesson:
		at, _ := s.Lesson(current.LessonID)
		if at.Position > lesson.Position {
			return current, nil
		}
		if at.Position < lesson.Position {
			return current, fmt.Errorf("lesson %q is ahead of %q: %w", lessonID, current.LessonID, shared.ErrInvalidTransition)
		}
	}

	next := learner.Assessment()
	if nl, ok := s.NextLesson(lessonID); ok {
		next = learner.Lesson(nl.ID)
	}

	restore := snapshot(u, s.ID)
	u.SetCursor(s.ID, next)
	if err := t.store.Save(ctx, u); err != nil {
		restore()
		return current, fmt.Errorf("advance %q in %q: %w: %v", u.Username, s.ID, shared.ErrPersistence, err)
	}

	t.logEvent(Event{
		Username:  u.Username,
		SubjectID: s.ID,
		EventType: EventLessonCompleted,
		Data: map[string]any{
			"lesson_id": lessonID,
			"next":      next.String(),
		},
	})
	return next, nil
}

// TakeAssessment administers the subject's assessment. The first graded pass
// stores the score and completes the subject in a single save. Later passes
// are review only and never change the stored grade. Nothing is mutated when
// the administration is interrupted.
func (t *Tracker) TakeAssessment(ctx context.Context, u *learner.User, s *catalog.Subject, asker assessment.Asker) (Outcome, error) {
	current := t.CurrentCursor(u, s)
	if current.Kind != learner.AwaitingAssessment && current.Kind != learner.Completed {
		return Outcome{}, fmt.Errorf("assessment of %q from %s: %w", s.ID, current, shared.ErrInvalidTransition)
	}

	result, err := assessment.Administer(ctx, s.Assessment, asker)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Result: result,
		Review: assessment.Review(s.Assessment, result),
		Score:  assessment.Score(s.Assessment, result),
	}

	restore := snapshot(u, s.ID)
	existing, graded := u.Grade(s.ID)
	eventType := EventAssessmentReviewed

	switch {
	case !graded:
		u.SetGrade(s.ID, out.Score)
		u.SetCursor(s.ID, learner.Done())
		out.Grade = out.Score
		out.Recorded = true
		eventType = EventAssessmentGraded
	case current.Kind != learner.Completed:
		slog.Info("completing subject graded in an earlier session",
			"username", u.Username,
			"subject_id", s.ID,
		)
		u.SetCursor(s.ID, learner.Done())
		out.Grade = existing
	default:
		out.Grade = existing
	}
	out.Display = assessment.DisplayGrade(out.Grade, s.MaxGrade)

	if out.Recorded || current.Kind != learner.Completed {
		if err := t.commit(ctx, u); err != nil {
			restore()
			return Outcome{}, fmt.Errorf("commit assessment of %q for %q: %w: %v", s.ID, u.Username, shared.ErrPersistence, err)
		}
	}

	t.logEvent(Event{
		Username:  u.Username,
		SubjectID: s.ID,
		EventType: eventType,
		Data: map[string]any{
			"score":    out.Score,
			"grade":    out.Grade,
			"recorded": out.Recorded,
		},
	})
	return out, nil
}

// commit saves u, retrying with exponential backoff.
func (t *Tracker) commit(ctx context.Context, u *learner.User) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.retryInterval
	b := backoff.WithMaxRetries(eb, uint64(t.saveAttempts-1))

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return t.store.Save(ctx, u)
	}, b, func(err error, wait time.Duration) {
		slog.Warn("save failed, retrying",
			"username", u.Username,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	})
}

func (t *Tracker) logEvent(event Event) {
	if err := t.events.LogEvent(event); err != nil {
		slog.Warn("failed to log progress event", "type", event.EventType, "error", err)
	}
}

func start(s *catalog.Subject) learner.Cursor {
	if first, ok := s.FirstLesson(); ok {
		return learner.Lesson(first.ID)
	}
	return learner.Assessment()
}

// snapshot captures the subject's cursor and grade and returns a function
// that puts them back.
func snapshot(u *learner.User, subjectID string) func() {
	cursor, hadCursor := u.Cursor(subjectID)
	grade, hadGrade := u.Grade(subjectID)
	return func() {
		if hadCursor {
			u.SetCursor(subjectID, cursor)
		} else {
			u.SetCursor(subjectID, learner.Cursor{})
		}
		if hadGrade {
			u.SetGrade(subjectID, grade)
		} else {
			u.ClearGrade(subjectID)
		}
	}
}
