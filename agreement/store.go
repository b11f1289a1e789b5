package agreement

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"pactflow/auth"
	"pactflow/notify"
)

// Store persists agreements with their parties and signatures.
type Store interface {
	Create(ctx context.Context, a Agreement) (Agreement, error)
	// Get returns the agreement with parties and signatures, or ErrNotFound.
	Get(ctx context.Context, id string) (Agreement, error)
	// ListForUser returns agreements userID created or is a party to, newest first.
	ListForUser(ctx context.Context, userID string) ([]Agreement, error)
	ListByStatus(ctx context.Context, userID string, status Status) ([]Agreement, error)
	Stats(ctx context.Context, userID string, monthStart time.Time) (Stats, error)
	// WithinAgreement locks agreement id and runs fn. Every write made through
	// the Unit commits when fn returns nil and is discarded otherwise.
	WithinAgreement(ctx context.Context, id string, fn func(Unit) error) error
	// ListInconsistent returns ids whose stored status disagrees with Aggregate.
	ListInconsistent(ctx context.Context) ([]string, error)
}

// Unit is the locked view of one agreement inside WithinAgreement.
type Unit interface {
	// Agreement is the locked row without parties or signatures.
	Agreement() Agreement
	Parties(ctx context.Context) ([]Party, error)
	PartyFor(ctx context.Context, userID string) (Party, bool, error)
	// InsertParty fails with ErrDuplicateParty when the user is already a party.
	InsertParty(ctx context.Context, p Party) (Party, error)
	SetPartyStatus(ctx context.Context, partyID string, status PartyStatus, respondedAt *time.Time) error
	InsertSignature(ctx context.Context, s Signature) (Signature, error)
	SignatureFor(ctx context.Context, userID string) (Signature, bool, error)
	SetStatus(ctx context.Context, status Status) error
	Update(ctx context.Context, patch Patch) (Agreement, error)
	SetDocumentURL(ctx context.Context, url string) error
	Delete(ctx context.Context) error
	// Enqueue stages a notification that is published only if the unit commits.
	Enqueue(ctx context.Context, msg notify.Message) error
	// OTPs reads signing codes; codes consumed through it stay unused if the
	// unit does not commit.
	OTPs() auth.OTPStore
}

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
