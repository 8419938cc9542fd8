package tracker

import (
	"errors"

	"trading-journal/internal/journal"
	"trading-journal/internal/remote"
)

// ProfileError is a failed write of the profile created at sign-up.
type ProfileError struct {
	Err error
}

func (e *ProfileError) Error() string {
	return "failed to create profile: " + e.Err.Error()
}

func (e *ProfileError) Unwrap() error {
	return e.Err
}

// Message renders an error returned by a Tracker command for display.
func Message(err error) string {
	var verrs journal.ValidationErrors
	var verr *journal.ValidationError
	var perr *ProfileError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &verrs), errors.As(err, &verr):
		return err.Error()
	case errors.Is(err, ErrNotSignedIn):
		return "Sign in first."
	case errors.Is(err, ErrUserNotFound):
		return "User not found."
	case errors.Is(err, ErrNoValidRows):
		return "No valid trades found in the file."
	case errors.As(err, &perr):
		return remote.TranslateProfile(perr.Err)
	default:
		return remote.Translate(err)
	}
}
