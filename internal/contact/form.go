package contact

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Problem is a user-facing validation failure. Its text is returned to the
// client as-is.
type Problem string

func (p Problem) Error() string { return string(p) }

const (
	ErrInvalidBody   Problem = "Invalid request body"
	ErrFirstName     Problem = "First name is required"
	ErrLastName      Problem = "Last name is required"
	ErrEmail         Problem = "Valid email is required"
	ErrMessageLength Problem = "Message must be at least 10 characters"
)

const minMessageLen = 10

// Form is a validated contact submission. Strings are trimmed and Email is
// lowercased. Phone and Service are empty when absent.
type Form struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

// Submission is a Form accepted for delivery.
type Submission struct {
	Form
	ID         string    `json:"id"`
	ClientIP   string    `json:"clientIp"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Name joins first and last name.
func (f Form) Name() string {
	return f.FirstName + " " + f.LastName
}

// Subject is the email subject line for the form.
func (f Form) Subject() string {
	if f.Service == "" {
		return "Portfolio Contact: General Inquiry"
	}
	return "Portfolio Contact: " + f.Service
}

// Decode reads a JSON object from r and validates it. Any failure is a
// Problem.
func Decode(r io.Reader) (Form, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil || raw == nil {
		return Form{}, ErrInvalidBody
	}
	return Validate(raw)
}

// Validate checks the decoded body field by field, in the order the client
// shows them, and returns the first problem found.
func Validate(raw map[string]any) (Form, error) {
	if raw == nil {
		return Form{}, ErrInvalidBody
	}

	first, ok := requiredString(raw["firstName"])
	if !ok {
		return Form{}, ErrFirstName
	}
	last, ok := requiredString(raw["lastName"])
	if !ok {
		return Form{}, ErrLastName
	}
	email, ok := raw["email"].(string)
	if !ok || !strings.Contains(email, "@") {
		return Form{}, ErrEmail
	}
	msg, _ := raw["message"].(string)
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) < minMessageLen {
		return Form{}, ErrMessageLength
	}

	return Form{
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Phone:     optionalString(raw["phone"]),
		Service:   optionalString(raw["service"]),
		Message:   msg,
	}, nil
}

func requiredString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// optionalString accepts strings and numbers (phone numbers are sometimes
// sent unquoted). Anything else reads as absent.
func optionalString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
