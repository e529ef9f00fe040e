// Package app is the interactive control loop: sign in, enroll, pick a
// subject, read lessons and take the assessment. An interrupt unwinds to the
// nearest menu; at the entry menu it ends the program.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pim/internal/account"
	"github.com/p-n-ai/pim/internal/catalog"
	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/platform/cache"
	"github.com/p-n-ai/pim/internal/progress"
	"github.com/p-n-ai/pim/internal/shared"
	"github.com/p-n-ai/pim/internal/terminal"
)

const (
	titleEntry    = "Entry"
	titleRegister = "Registration"
	titleLogin    = "Login"
	titleCourse   = "Course selection"
	titleSubject  = "Subject selection"
	titleResult   = "Result"
	titleReview   = "Review"

	promptChoice   = "> "
	promptContinue = "Press Enter to continue."
	msgInvalid     = "Invalid option."
)

// Config holds dependencies for the application.
type Config struct {
	Console  terminal.Console
	Catalog  *catalog.Catalog
	Users    learner.Store
	Accounts *account.Service
	Tracker  *progress.Tracker
	Locker   cache.Locker
}

// App runs one interactive session at a time.
type App struct {
	console  terminal.Console
	catalog  *catalog.Catalog
	users    learner.Store
	accounts *account.Service
	tracker  *progress.Tracker
	locker   cache.Locker
}

// New creates the application.
func New(cfg Config) *App {
	locker := cfg.Locker
	if locker == nil {
		locker = cache.NopLocker{}
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = progress.NewTracker(progress.TrackerConfig{Store: cfg.Users})
	}
	return &App{
		console:  cfg.Console,
		catalog:  cfg.Catalog,
		users:    cfg.Users,
		accounts: cfg.Accounts,
		tracker:  tracker,
		locker:   locker,
	}
}

// Run shows the entry menu until a user signs in, then runs their session.
// It returns nil when the user leaves through an interrupt.
func (a *App) Run(ctx context.Context) error {
	for {
		u, err := a.signIn(ctx)
		if shared.IsInterrupted(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if u == nil {
			continue
		}

		unlock, err := a.locker.Lock(ctx, u.Username)
		if errors.Is(err, cache.ErrSessionActive) {
			a.console.Message("This user already has an open session. Close it and try again.")
			if err := a.console.Pause(ctx, promptContinue); shared.IsInterrupted(err) {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}

		err = a.session(ctx, u)
		if uerr := unlock(ctx); uerr != nil {
			slog.Warn("failed to release session lock", "username", u.Username, "error", uerr)
		}
		if shared.IsDataCorruption(err) {
			a.reportCorruption(ctx, u.Username, err)
			return nil
		}
		if shared.IsInterrupted(err) || errors.Is(err, errNothingToStudy) {
			return nil
		}
		return err
	}
}

// session runs the subject menu of a signed-in user.
func (a *App) session(ctx context.Context, u *learner.User) error {
	a.console.Menu(titleEntry, fmt.Sprintf("Welcome, %s.", u.FirstName()))
	slog.Info("session started", "username", u.Username)
	defer slog.Info("session ended", "username", u.Username)

	course, err := a.enrolledCourse(ctx, u)
	if err != nil {
		return err
	}

	for {
		subject, err := a.selectSubject(ctx, u, course)
		if err != nil {
			return err
		}

		if err := learner.Refresh(ctx, a.users, u); err != nil {
			return err
		}
		if u.CourseID != course.ID {
			slog.Info("course changed in another session", "username", u.Username, "from", course.ID, "to", u.CourseID)
			if course, err = a.enrolledCourse(ctx, u); err != nil {
				return err
			}
			continue
		}
		err = a.openSubject(ctx, u, subject)
		if err != nil && !shared.IsInterrupted(err) && !errors.Is(err, errBack) {
			return err
		}
	}
}

func (a *App) reportCorruption(ctx context.Context, username string, err error) {
	slog.Error("user data could not be read", "username", username, "error", err)
	a.console.Menu("Error",
		"Your saved data could not be read and this session cannot continue.",
		"Nothing was overwritten. Please contact support.",
	)
	_ = a.console.Pause(ctx, promptContinue)
}
