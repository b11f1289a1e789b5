package agreement

import (
	"strings"
	"time"
)

// Status is the aggregate state of an agreement.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPending         Status = "pending"
	StatusPartiallySigned Status = "partially_signed"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPartiallySigned, StatusCompleted, StatusRejected:
		return true
	default:
		return false
	}
}

// Type selects the content template of an agreement.
type Type string

const (
	TypeRental  Type = "rental"
	TypeService Type = "service"
	TypeNDA     Type = "nda"
	TypeSale    Type = "sale"
	TypeCustom  Type = "custom"
)

func (t Type) Valid() bool {
	switch t {
	case TypeRental, TypeService, TypeNDA, TypeSale, TypeCustom:
		return true
	default:
		return false
	}
}

type PartyRole string

const (
	RoleCreator PartyRole = "creator"
	RoleSigner  PartyRole = "signer"
)

// PartyStatus is one invitee's response. Signed and rejected are final.
type PartyStatus string

const (
	PartyPending  PartyStatus = "pending"
	PartyViewed   PartyStatus = "viewed"
	PartySigned   PartyStatus = "signed"
	PartyRejected PartyStatus = "rejected"
)

func (s PartyStatus) Valid() bool {
	switch s {
	case PartyPending, PartyViewed, PartySigned, PartyRejected:
		return true
	default:
		return false
	}
}

// Final reports whether the party has responded.
func (s PartyStatus) Final() bool {
	return s == PartySigned || s == PartyRejected
}

// Agreement is the aggregate root. Parties and Signatures are populated on
// reads and ignored on writes.
type Agreement struct {
	ID           string
	Title        string
	Type         Type
	Content      string
	FormData     map[string]string
	Status       Status
	CreatorID    string
	CreatorEmail string
	DocumentURL  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Parties    []Party
	Signatures []Signature
}

// PartyFor returns the party row of userID, if any.
func (a Agreement) PartyFor(userID string) (Party, bool) {
	for _, p := range a.Parties {
		if p.UserID == userID {
			return p, true
		}
	}
	return Party{}, false
}

// CanRead reports whether userID is the creator or one of the parties.
func (a Agreement) CanRead(userID string) bool {
	if userID == "" {
		return false
	}
	if a.CreatorID == userID {
		return true
	}
	_, ok := a.PartyFor(userID)
	return ok
}

// Party is an invited signer. Email is joined from the profile.
type Party struct {
	ID          string
	AgreementID string
	UserID      string
	Email       string
	Role        PartyRole
	Status      PartyStatus
	InvitedAt   time.Time
	RespondedAt *time.Time
}

// Signature is an immutable signing record.
type Signature struct {
	ID          string
	AgreementID string
	UserID      string
	Kind        SignatureKind
	Payload     Payload
	IPAddress   string
	UserAgent   string
	SignedAt    time.Time
}

type CreateParams struct {
	Title    string
	Type     Type
	Content  string
	FormData map[string]string
}

// Patch is a partial update of a draft. Nil fields are left unchanged.
type Patch struct {
	Title    *string
	Content  *string
	FormData map[string]string
}

// Fields names the columns the patch touches, for the audit trail.
func (p Patch) Fields() []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Content != nil {
		fields = append(fields, "content")
	}
	if p.FormData != nil {
		fields = append(fields, "formData")
	}
	return fields
}

func (p Patch) empty() bool {
	return p.Title == nil && p.Content == nil && p.FormData == nil
}

// ClientMeta identifies where a request came from.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// Stats summarises the agreements visible to one user.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Drafts    int `json:"drafts"`
	ThisMonth int `json:"thisMonth"`
}

func normalizeTitle(s string) string {
	return strings.TrimSpace(s)
}
