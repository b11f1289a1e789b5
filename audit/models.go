package audit

import "time"

// Action tags one kind of state-changing operation on an agreement.
type Action string

const (
	ActionCreated          Action = "created"
	ActionUpdated          Action = "updated"
	ActionDeleted          Action = "deleted"
	ActionPartyInvited     Action = "party_invited"
	ActionViewed           Action = "viewed"
	ActionSigned           Action = "signed"
	ActionRejected         Action = "rejected"
	ActionSignatureRequest Action = "signature_requested"
	ActionStatusRepaired   Action = "status_repaired"
	ActionDocumentExported Action = "document_exported"
)

// Entry is one immutable audit row. UserID is nil for system actions.
type Entry struct {
	ID          int64          `json:"id"`
	AgreementID string         `json:"agreementId"`
	UserID      *string        `json:"userId,omitempty"`
	Action      Action         `json:"action"`
	Details     map[string]any `json:"details,omitempty"`
	IPAddress   string         `json:"ipAddress,omitempty"`
	UserAgent   string         `json:"userAgent,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}
