package agreement

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pactflow/audit"
	"pactflow/auth"
	"pactflow/document"
	"pactflow/notify"
	"pactflow/profile"
)

// systemSender signs notifications that no user triggered directly.
const systemSender = "PactFlow"

// Directory resolves registered users.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (profile.Profile, error)
}

// Auditor appends to and reads the audit trail. Record never fails the caller.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
	List(ctx context.Context, agreementID string) ([]audit.Entry, error)
}

// Observer is told about domain events, typically a metrics collector.
type Observer interface {
	SignatureRecorded(kind string)
	AgreementCompleted()
	PartyInvited()
	StatusRepaired()
}

// OTPVerifier checks a one-time signing code and consumes it through codes,
// the store bound to the signing unit.
type OTPVerifier interface {
	Verify(ctx context.Context, codes auth.OTPStore, agreementID, userID, code string) error
}

type nopObserver struct{}

func (nopObserver) SignatureRecorded(string) {}
func (nopObserver) AgreementCompleted()      {}
func (nopObserver) PartyInvited()            {}
func (nopObserver) StatusRepaired()          {}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, audit.Entry) {}
func (nopAuditor) List(context.Context, string) ([]audit.Entry, error) {
	return []audit.Entry{}, nil
}

// Service implements agreement CRUD, invitations and signing on top of a Store.
type Service struct {
	store     Store
	directory Directory
	auditor   Auditor
	observer  Observer
	otp       OTPVerifier
	exporter  *document.Exporter
	documents document.Store
	baseURL   string
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(store Store, directory Directory, auditor Auditor) *Service {
	if auditor == nil {
		auditor = nopAuditor{}
	}
	return &Service{
		store:     store,
		directory: directory,
		auditor:   auditor,
		observer:  nopObserver{},
		exporter:  document.NewExporter(),
		documents: document.NopStore{},
		now:       time.Now,
		logger:    slog.Default(),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

// WithOTPVerifier makes OTP signatures require an issued code. Without a
// verifier any six character code is accepted.
func (s *Service) WithOTPVerifier(v OTPVerifier) *Service {
	s.otp = v
	return s
}

// WithDocuments sets where exported documents are stored.
func (s *Service) WithDocuments(exporter *document.Exporter, store document.Store) *Service {
	if exporter != nil {
		s.exporter = exporter
	}
	if store != nil {
		s.documents = store
	}
	return s
}

// WithBaseURL sets the origin used to build links in notifications.
func (s *Service) WithBaseURL(base string) *Service {
	s.baseURL = strings.TrimRight(base, "/")
	return s
}

func (s *Service) inviteLink(agreementID string) string {
	return s.baseURL + "/agreement/" + agreementID
}

func (s *Service) record(ctx context.Context, action audit.Action, agreementID, userID string, meta ClientMeta, details map[string]any) {
	s.auditor.Record(ctx, audit.Entry{
		AgreementID: agreementID,
		UserID:      userRef(userID),
		Action:      action,
		Details:     details,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		CreatedAt:   s.now().UTC(),
	})
}

func userRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func requirePrincipal(p auth.Principal) error {
	if p.Anonymous() {
		return ErrAuthentication
	}
	return nil
}

func senderName(p auth.Principal) string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	return "Someone"
}

// enqueueCompleted notifies every party and the creator once. Called inside
// the unit that moved the agreement to completed, so it reads nothing outside
// that unit.
func (s *Service) enqueueCompleted(ctx context.Context, u Unit, parties []Party) error {
	a := u.Agreement()
	seen := map[string]struct{}{}
	var recipients []string
	add := func(email string) {
		key := profile.NormalizeEmail(email)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		recipients = append(recipients, email)
	}

	if a.CreatorEmail != "" {
		add(a.CreatorEmail)
	} else {
		s.logger.WarnContext(ctx, "creator has no email for completion notice",
			slog.String("agreement_id", a.ID), slog.String("creator_id", a.CreatorID))
	}
	for _, p := range parties {
		add(p.Email)
	}

	for _, to := range recipients {
		err := u.Enqueue(ctx, notify.Message{
			To:             to,
			Type:           notify.TypeCompleted,
			AgreementTitle: a.Title,
			SenderName:     systemSender,
			AgreementID:    a.ID,
			InviteLink:     s.inviteLink(a.ID),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
