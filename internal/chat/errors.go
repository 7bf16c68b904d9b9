package chat

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrNameTaken is returned when a username is already online.
	ErrNameTaken = errors.New("name already taken")
	// ErrInvalidName is returned for usernames that can never be registered.
	ErrInvalidName = errors.New("invalid username")
	// ErrUnknownUser is returned when a stream names a user with no registration.
	ErrUnknownUser = errors.New("user is not registered")
	// ErrAlreadyAttached is returned when a second stream claims a session.
	ErrAlreadyAttached = errors.New("session already has an active stream")
	// ErrBadHandshake is returned when the first frame of a stream is unusable.
	ErrBadHandshake = errors.New("bad handshake")
	// ErrServerBusy is returned when the stream concurrency cap is exhausted.
	ErrServerBusy = errors.New("server is at capacity")
	// ErrShuttingDown is returned once the service has begun shutdown.
	ErrShuttingDown = errors.New("service is shutting down")
)

// DefaultMaxNameLength bounds usernames when no limit is configured.
const DefaultMaxNameLength = 32

// NormalizeName trims the name and checks it against the username rules.
func NormalizeName(name string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxNameLength
	}

	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	case utf8.RuneCountInString(name) > maxLen:
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxLen)
	case name == ServerName:
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	case strings.HasPrefix(name, "/"):
		return "", fmt.Errorf("%w: name must not start with '/'", ErrInvalidName)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: name contains control characters", ErrInvalidName)
		}
	}
	return name, nil
}
