package agreement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pactflow/auth"
	"pactflow/notify"
)

type memRecord struct {
	agreement  Agreement
	parties    []Party
	signatures []Signature
}

func (r *memRecord) clone() *memRecord {
	c := &memRecord{
		agreement:  cloneAgreement(r.agreement),
		parties:    append([]Party(nil), r.parties...),
		signatures: append([]Signature(nil), r.signatures...),
	}
	return c
}

// MemoryStore is an in-process Store. One mutex serialises every unit of
// work, and a failed unit restores the snapshot taken before it ran.
// Notifications staged in a unit are pushed to the queue after it commits.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memRecord
	queue   *notify.MemoryQueue
	otps    auth.OTPStore
	now     func() time.Time
}

func NewMemoryStore(queue *notify.MemoryQueue) *MemoryStore {
	if queue == nil {
		queue = notify.NewMemoryQueue()
	}
	return &MemoryStore{records: make(map[string]*memRecord), queue: queue, now: time.Now}
}

// WithOTPStore sets where units read signing codes. Codes consumed in a unit
// are marked used only when it commits.
func (m *MemoryStore) WithOTPStore(otps auth.OTPStore) *MemoryStore {
	m.otps = otps
	return m
}

// Queue returns the queue receiving committed notifications.
func (m *MemoryStore) Queue() *notify.MemoryQueue { return m.queue }

func (m *MemoryStore) Create(_ context.Context, a Agreement) (Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	a.ID = uuid.NewString()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Parties = nil
	a.Signatures = nil
	m.records[a.ID] = &memRecord{agreement: cloneAgreement(a)}
	return m.materialise(m.records[a.ID]), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Agreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return Agreement{}, ErrNotFound
	}
	return m.materialise(rec), nil
}

func (m *MemoryStore) ListForUser(_ context.Context, userID string) ([]Agreement, error) {
	return m.filter(userID, func(Agreement) bool { return true }), nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, userID string, status Status) ([]Agreement, error) {
	return m.filter(userID, func(a Agreement) bool { return a.Status == status }), nil
}

func (m *MemoryStore) Stats(ctx context.Context, userID string, monthStart time.Time) (Stats, error) {
	var st Stats
	for _, a := range m.filter(userID, func(Agreement) bool { return true }) {
		st.Total++
		switch a.Status {
		case StatusCompleted:
			st.Completed++
		case StatusPending, StatusPartiallySigned:
			st.Pending++
		case StatusDraft:
			st.Drafts++
		}
		if !a.CreatedAt.Before(monthStart) {
			st.ThisMonth++
		}
	}
	return st, nil
}

func (m *MemoryStore) filter(userID string, keep func(Agreement) bool) []Agreement {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Agreement{}
	for _, rec := range m.records {
		a := m.materialise(rec)
		if a.CanRead(userID) && keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemoryStore) ListInconsistent(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, rec := range m.records {
		if !Consistent(rec.agreement.Status, statusesOf(rec.parties)) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) WithinAgreement(ctx context.Context, id string, fn func(Unit) error) error {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}

	snapshot := rec.clone()
	u := &memUnit{store: m, rec: rec}
	err := fn(u)
	if err != nil {
		m.records[id] = snapshot
		m.mu.Unlock()
		return err
	}
	for _, used := range u.usedOTPs {
		if err := m.otps.MarkUsed(ctx, used.id, used.at); err != nil {
			m.records[id] = snapshot
			m.mu.Unlock()
			if errors.Is(err, auth.ErrOTPNotFound) {
				return fmt.Errorf("%w: %v", ErrInvalidSignature, auth.ErrOTPInvalid)
			}
			return &StoreError{Op: "mark otp used", Err: err}
		}
	}
	if u.deleted {
		delete(m.records, id)
	}
	staged := u.outbox
	m.mu.Unlock()

	for _, msg := range staged {
		if err := m.queue.Push(msg); err != nil {
			return &StoreError{Op: "publish notification", Err: err}
		}
	}
	return nil
}

// materialise copies rec into an Agreement with emails and children set.
func (m *MemoryStore) materialise(rec *memRecord) Agreement {
	a := cloneAgreement(rec.agreement)
	a.Parties = append([]Party{}, rec.parties...)
	a.Signatures = append([]Signature{}, rec.signatures...)
	return a
}

type memUnit struct {
	store    *MemoryStore
	rec      *memRecord
	outbox   []notify.Message
	usedOTPs []usedOTP
	deleted  bool
}

type usedOTP struct {
	id string
	at time.Time
}

func (u *memUnit) Agreement() Agreement { return cloneAgreement(u.rec.agreement) }

func (u *memUnit) Parties(context.Context) ([]Party, error) {
	return append([]Party{}, u.rec.parties...), nil
}

func (u *memUnit) PartyFor(_ context.Context, userID string) (Party, bool, error) {
	for _, p := range u.rec.parties {
		if p.UserID == userID {
			return p, true, nil
		}
	}
	return Party{}, false, nil
}

func (u *memUnit) InsertParty(_ context.Context, p Party) (Party, error) {
	for _, existing := range u.rec.parties {
		if existing.UserID == p.UserID {
			return Party{}, ErrDuplicateParty
		}
	}
	p.ID = uuid.NewString()
	p.AgreementID = u.rec.agreement.ID
	u.rec.parties = append(u.rec.parties, p)
	return p, nil
}

func (u *memUnit) SetPartyStatus(_ context.Context, partyID string, status PartyStatus, respondedAt *time.Time) error {
	for i := range u.rec.parties {
		if u.rec.parties[i].ID == partyID {
			u.rec.parties[i].Status = status
			u.rec.parties[i].RespondedAt = respondedAt
			return nil
		}
	}
	return ErrNotFound
}

func (u *memUnit) InsertSignature(_ context.Context, s Signature) (Signature, error) {
	for _, existing := range u.rec.signatures {
		if existing.UserID == s.UserID {
			return Signature{}, ErrAlreadyResponded
		}
	}
	s.ID = uuid.NewString()
	s.AgreementID = u.rec.agreement.ID
	s.Kind = s.Payload.Kind()
	u.rec.signatures = append(u.rec.signatures, s)
	return s, nil
}

func (u *memUnit) SignatureFor(_ context.Context, userID string) (Signature, bool, error) {
	for _, s := range u.rec.signatures {
		if s.UserID == userID {
			return s, true, nil
		}
	}
	return Signature{}, false, nil
}

func (u *memUnit) SetStatus(_ context.Context, status Status) error {
	u.rec.agreement.Status = status
	u.rec.agreement.UpdatedAt = u.store.now().UTC()
	return nil
}

func (u *memUnit) Update(_ context.Context, patch Patch) (Agreement, error) {
	a := &u.rec.agreement
	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.Content != nil {
		a.Content = *patch.Content
	}
	if patch.FormData != nil {
		a.FormData = cloneForm(patch.FormData)
	}
	a.UpdatedAt = u.store.now().UTC()
	return cloneAgreement(*a), nil
}

func (u *memUnit) SetDocumentURL(_ context.Context, url string) error {
	u.rec.agreement.DocumentURL = &url
	u.rec.agreement.UpdatedAt = u.store.now().UTC()
	return nil
}

func (u *memUnit) Delete(context.Context) error {
	u.deleted = true
	return nil
}

func (u *memUnit) Enqueue(_ context.Context, msg notify.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	u.outbox = append(u.outbox, msg)
	return nil
}

func (u *memUnit) OTPs() auth.OTPStore { return (*memOTPs)(u) }

// memOTPs reads through to the store's codes and defers MarkUsed to commit.
type memOTPs memUnit

func (o *memOTPs) LatestUnused(ctx context.Context, agreementID, userID string) (auth.OTP, error) {
	if o.store.otps == nil {
		return auth.OTP{}, auth.ErrOTPNotFound
	}
	otp, err := o.store.otps.LatestUnused(ctx, agreementID, userID)
	if err != nil {
		return auth.OTP{}, err
	}
	if o.consumed(otp.ID) {
		return auth.OTP{}, auth.ErrOTPNotFound
	}
	return otp, nil
}

func (o *memOTPs) MarkUsed(_ context.Context, id string, at time.Time) error {
	if o.consumed(id) {
		return auth.ErrOTPNotFound
	}
	o.usedOTPs = append(o.usedOTPs, usedOTP{id: id, at: at})
	return nil
}

func (o *memOTPs) consumed(id string) bool {
	for _, used := range o.usedOTPs {
		if used.id == id {
			return true
		}
	}
	return false
}

func cloneAgreement(a Agreement) Agreement {
	a.FormData = cloneForm(a.FormData)
	if a.DocumentURL != nil {
		url := *a.DocumentURL
		a.DocumentURL = &url
	}
	return a
}

func cloneForm(form map[string]string) map[string]string {
	out := make(map[string]string, len(form))
	for k, v := range form {
		out[k] = v
	}
	return out
}
