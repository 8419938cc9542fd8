package remote

import (
	"errors"
	"strings"
)

// UsernameTaken is shown when a profile write hits the username unique index.
const UsernameTaken = "Username already taken. Choose another one."

var messages = map[string]string{
	"Invalid login credentials":                "Invalid credentials. Check username and password.",
	"Email not confirmed":                      "Confirm your e-mail before signing in.",
	"Too many requests":                        "Too many attempts. Try again in a few minutes.",
	"User already registered":                  "E-mail already registered. Sign in or use another e-mail.",
	"Password should be at least 6 characters": "Password must have at least 6 characters.",
	"Unable to validate email address":         "Invalid e-mail.",
	"signup_disabled":                          "Sign-up of new users is disabled.",
}

// Translate turns err into a message fit for display. Known remote messages
// are mapped; anything else is returned as is.
func Translate(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	var rerr *Error
	if errors.As(err, &rerr) {
		if m, ok := messages[rerr.Code]; ok {
			return m
		}
		msg = rerr.Message
	}
	if m, ok := messages[msg]; ok {
		return m
	}
	if msg == "" {
		return "Unknown error"
	}
	return msg
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

// TranslateProfile is Translate for profile writes, which also report
// username collisions.
func TranslateProfile(err error) string {
	if IsDuplicate(err) {
		return UsernameTaken
	}
	return Translate(err)
}
