package contact

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrValidation wraps every malformed-submission rejection so callers can
// map the whole class to one user-visible response.
var ErrValidation = errors.New("invalid submission")

var namePattern = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)

// Submission is one contact form payload as received from the site.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate enforces the form constraints before the submission reaches the
// rate gate. Limits match what the site promises in its field hints.
func (s Submission) Validate() error {
	name := strings.TrimSpace(s.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return fmt.Errorf("%w: name must be 2-100 characters", ErrValidation)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: name can only contain letters, spaces, hyphens, and apostrophes", ErrValidation)
	}

	email := strings.TrimSpace(s.Email)
	if email == "" || len(email) > 255 {
		return fmt.Errorf("%w: email must be 1-255 characters", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(s.Subject)); n < 5 || n > 200 {
		return fmt.Errorf("%w: subject must be 5-200 characters", ErrValidation)
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(s.Message)); n < 10 || n > 2000 {
		return fmt.Errorf("%w: message must be 10-2000 characters", ErrValidation)
	}

	return nil
}
