package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/models"
)

// SendRequest carries everything Send needs besides the room and sender.
type SendRequest struct {
	SenderRole  string
	Kind        models.MessageKind
	Body        string
	Attachments []string
}

// Validate checks a message before it is persisted.
func (r SendRequest) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, r.Kind)
	}
	if strings.TrimSpace(r.SenderRole) == "" {
		return fmt.Errorf("%w: sender role is required", ErrInvalidMessage)
	}
	if len(r.Body) > config.MaxMessageLength {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidMessage, config.MaxMessageLength)
	}
	if !utf8.ValidString(r.Body) {
		return fmt.Errorf("%w: body is not valid UTF-8", ErrInvalidMessage)
	}

	switch r.Kind {
	case models.KindText, models.KindSystem:
		if strings.TrimSpace(r.Body) == "" {
			return fmt.Errorf("%w: body is empty", ErrInvalidMessage)
		}
	case models.KindFile, models.KindImage:
		if len(r.Attachments) == 0 {
			return fmt.Errorf("%w: %s message needs an attachment", ErrInvalidMessage, r.Kind)
		}
		for _, a := range r.Attachments {
			if strings.TrimSpace(a) == "" {
				return fmt.Errorf("%w: empty attachment reference", ErrInvalidMessage)
			}
		}
	}
	return nil
}
