// Package notify delivers agreement notifications through a transactional
// outbox: business transactions enqueue messages, a Worker drains them.
package notify

import (
	"errors"
	"strings"
	"time"
)

// Type identifies which notification template a message uses.
type Type string

const (
	TypeInvitation       Type = "invitation"
	TypeSignatureRequest Type = "signature_request"
	TypeCompleted        Type = "completed"
)

// Valid reports whether t is one of the known notification types.
func (t Type) Valid() bool {
	switch t {
	case TypeInvitation, TypeSignatureRequest, TypeCompleted:
		return true
	default:
		return false
	}
}

var (
	ErrInvalidMessage = errors.New("notify: invalid message")
)

// Message is the JSON body handed to the delivery collaborator.
type Message struct {
	To             string `json:"to"`
	Type           Type   `json:"type"`
	AgreementTitle string `json:"agreementTitle"`
	SenderName     string `json:"senderName"`
	AgreementID    string `json:"agreementId"`
	InviteLink     string `json:"inviteLink"`
}

// Validate checks the fields every template needs.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.Join(ErrInvalidMessage, errors.New("missing recipient"))
	}
	if !m.Type.Valid() {
		return errors.Join(ErrInvalidMessage, errors.New("unknown type "+string(m.Type)))
	}
	if m.AgreementID == "" {
		return errors.Join(ErrInvalidMessage, errors.New("missing agreement id"))
	}
	return nil
}

// Envelope is a claimed outbox row.
type Envelope struct {
	ID        string
	Message   Message
	Attempts  int
	CreatedAt time.Time
}

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusDead    = "dead"
)
