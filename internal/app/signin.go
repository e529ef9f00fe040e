package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/p-n-ai/pim/internal/account"
	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/shared"
)

// signIn shows the entry menu. A nil user with a nil error means the user
// backed out of login or registration and the menu should be shown again.
func (a *App) signIn(ctx context.Context) (*learner.User, error) {
	a.console.Menu(titleEntry,
		"Welcome to PIM (Integrated Mentoring Platform).",
		"You need to sign in to use the platform.",
		"",
		"Choose an option:",
		"[r]egister",
		"[L]ogin",
	)

	choice, err := a.console.Choose(ctx, promptChoice, []string{"r", "l"}, "l")
	if errors.Is(err, shared.ErrInvalidSelection) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var u *learner.User
	if choice == "r" {
		u, err = a.register(ctx)
	} else {
		u, err = a.login(ctx)
	}
	switch {
	case shared.IsInterrupted(err):
		return nil, nil
	case shared.IsDataCorruption(err):
		a.reportCorruption(ctx, "", err)
		return nil, nil
	}
	return u, err
}

func (a *App) login(ctx context.Context) (*learner.User, error) {
	for {
		a.console.Menu(titleLogin, "Signing in...", "Press Ctrl+C to go back.")

		username, err := a.console.ReadLine(ctx, "Username > ")
		if err != nil {
			return nil, err
		}
		username = learner.NormalizeUsername(username)
		if username == "" {
			continue
		}

		exists, err := a.accounts.Exists(ctx, username)
		if err != nil {
			return nil, err
		}
		if !exists {
			a.console.Message("User not found.")
			continue
		}

		password, err := a.console.ReadPassword(ctx, "Password (hidden) > ")
		if err != nil {
			return nil, err
		}

		u, err := a.accounts.Login(ctx, username, password)
		if errors.Is(err, account.ErrWrongPassword) {
			a.console.Message("Wrong password.")
			continue
		}
		if shared.IsNotFound(err) {
			a.console.Message("User not found.")
			continue
		}
		if err != nil {
			return nil, err
		}
		return u, nil
	}
}

func (a *App) register(ctx context.Context) (*learner.User, error) {
	a.console.Menu(titleRegister, "Creating your account...", "Press Ctrl+C to go back.")

	var r account.Registration
	var err error

	for r.FullName == "" {
		if r.FullName, err = a.console.ReadLine(ctx, "Full name > "); err != nil {
			return nil, err
		}
		r.FullName = learner.NormalizeFullName(r.FullName)
	}

	for {
		ageText, err := a.console.ReadLine(ctx, "Age > ")
		if err != nil {
			return nil, err
		}
		age, convErr := strconv.Atoi(strings.TrimSpace(ageText))
		if convErr != nil || age < 0 {
			a.console.Message("Invalid age.")
			continue
		}
		if age < learner.MinimumAge {
			a.console.Message(fmt.Sprintf("You must be at least %d years old to use the platform.", learner.MinimumAge))
			return nil, a.console.Pause(ctx, promptContinue)
		}
		r.Age = age
		break
	}

	gender, err := a.console.Choose(ctx, "Gender, [m]ale / [f]emale / Enter to skip > ", []string{"m", "f", "-"}, "-")
	for errors.Is(err, shared.ErrInvalidSelection) {
		a.console.Message(msgInvalid)
		gender, err = a.console.Choose(ctx, "Gender, [m]ale / [f]emale / Enter to skip > ", []string{"m", "f", "-"}, "-")
	}
	if err != nil {
		return nil, err
	}
	switch gender {
	case "m":
		r.Gender = learner.GenderMale
	case "f":
		r.Gender = learner.GenderFemale
	}

	if r.City, err = a.console.ReadLine(ctx, "City > "); err != nil {
		return nil, err
	}

	for {
		if r.Username, err = a.console.ReadLine(ctx, "Username > "); err != nil {
			return nil, err
		}
		r.Username = learner.NormalizeUsername(r.Username)
		if r.Username == "" {
			continue
		}
		taken, err := a.accounts.Exists(ctx, r.Username)
		if err != nil {
			return nil, err
		}
		if taken {
			a.console.Message("User already exists.")
			continue
		}
		break
	}

	for {
		if r.Password, err = a.console.ReadPassword(ctx, "Password (hidden) > "); err != nil {
			return nil, err
		}
		if r.Confirm, err = a.console.ReadPassword(ctx, "Repeat your password > "); err != nil {
			return nil, err
		}
		if r.Password == "" {
			a.console.Message("The password cannot be empty.")
			continue
		}
		if r.Password != r.Confirm {
			a.console.Message("The passwords do not match.")
			continue
		}
		break
	}

	u, err := a.accounts.Register(ctx, r)
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrAlreadyExists) {
		a.console.Message("Registration failed: " + err.Error())
		return nil, a.console.Pause(ctx, promptContinue)
	}
	return u, err
}
