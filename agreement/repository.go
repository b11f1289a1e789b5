package agreement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pactflow/auth"
	"pactflow/notify"
)

const (
	partyUniqueConstraint     = "agreement_parties_agreement_user_key"
	signatureUniqueConstraint = "signatures_agreement_user_key"
)

// DB is the subset of pgxpool.Pool the Postgres store uses.
type DB interface {
	TxBeginner
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OutboxWriter appends notifications inside a transaction.
type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, msg notify.Message) error
}

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store on PostgreSQL. Mutations serialise per agreement
// with SELECT ... FOR UPDATE on the agreement row.
type PGStore struct {
	db     DB
	outbox OutboxWriter
}

func NewPGStore(db DB, outbox OutboxWriter) *PGStore {
	return &PGStore{db: db, outbox: outbox}
}

const agreementColumns = `a.id::text, a.title, a.type, a.content, a.form_data, a.status, a.creator_id::text,
COALESCE((SELECT cp.email FROM profiles cp WHERE cp.id = a.creator_id), ''), a.document_url, a.created_at, a.updated_at`

// visibleTo filters agreements the user created or was invited to; $1 is the user id.
const visibleTo = `(a.creator_id = $1 OR EXISTS (SELECT 1 FROM agreement_parties vp WHERE vp.agreement_id = a.id AND vp.user_id = $1))`

// translate maps driver errors onto the agreement taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			switch pgErr.ConstraintName {
			case partyUniqueConstraint:
				return ErrDuplicateParty
			case signatureUniqueConstraint:
				return ErrAlreadyResponded
			}
		case "22P02":
			// malformed uuid in a lookup
			return ErrNotFound
		}
	}
	return &StoreError{Op: op, Err: err}
}

func (s *PGStore) Create(ctx context.Context, a Agreement) (Agreement, error) {
	form, err := marshalForm(a.FormData)
	if err != nil {
		return Agreement{}, err
	}

	const insertSQL = `
INSERT INTO agreements (title, type, content, form_data, status, creator_id)
VALUES ($1, $2, $3, $4::jsonb, $5, $6)
RETURNING id::text, created_at, updated_at
`
	err = s.db.QueryRow(ctx, insertSQL, a.Title, string(a.Type), a.Content, form, string(a.Status), a.CreatorID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Agreement{}, translate("create agreement", err)
	}
	a.Parties = []Party{}
	a.Signatures = []Signature{}
	return a, nil
}

func (s *PGStore) Get(ctx context.Context, id string) (Agreement, error) {
	a, err := scanAgreement(s.db.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements a WHERE a.id = $1`, id))
	if err != nil {
		return Agreement{}, translate("get agreement", err)
	}
	out := []Agreement{a}
	if err := loadChildren(ctx, s.db, out); err != nil {
		return Agreement{}, err
	}
	return out[0], nil
}

func (s *PGStore) ListForUser(ctx context.Context, userID string) ([]Agreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM agreements a WHERE ` + visibleTo + ` ORDER BY a.created_at DESC, a.id`
	return s.list(ctx, "list agreements", query, userID)
}

func (s *PGStore) ListByStatus(ctx context.Context, userID string, status Status) ([]Agreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM agreements a WHERE ` + visibleTo + ` AND a.status = $2 ORDER BY a.created_at DESC, a.id`
	return s.list(ctx, "list agreements by status", query, userID, string(status))
}

func (s *PGStore) list(ctx context.Context, op, query string, args ...any) ([]Agreement, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	out := []Agreement{}
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	if err := loadChildren(ctx, s.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) Stats(ctx context.Context, userID string, monthStart time.Time) (Stats, error) {
	query := `
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE a.status = 'completed'),
    COUNT(*) FILTER (WHERE a.status IN ('pending', 'partially_signed')),
    COUNT(*) FILTER (WHERE a.status = 'draft'),
    COUNT(*) FILTER (WHERE a.created_at >= $2)
FROM agreements a
WHERE ` + visibleTo

	var st Stats
	if err := s.db.QueryRow(ctx, query, userID, monthStart).Scan(&st.Total, &st.Completed, &st.Pending, &st.Drafts, &st.ThisMonth); err != nil {
		return Stats{}, translate("agreement stats", err)
	}
	return st, nil
}

func (s *PGStore) ListInconsistent(ctx context.Context) ([]string, error) {
	const query = `
WITH counts AS (
    SELECT a.id, a.status,
           COUNT(p.id) AS total,
           COUNT(p.id) FILTER (WHERE p.status = 'signed') AS signed,
           COUNT(p.id) FILTER (WHERE p.status = 'rejected') AS rejected
    FROM agreements a
    LEFT JOIN agreement_parties p ON p.agreement_id = a.id
    GROUP BY a.id, a.status
)
SELECT id::text
FROM counts
WHERE status <> CASE
    WHEN status = 'rejected' OR rejected > 0 THEN 'rejected'
    WHEN total = 0 THEN 'draft'
    WHEN signed = total THEN 'completed'
    WHEN signed > 0 THEN 'partially_signed'
    ELSE 'pending'
END
ORDER BY id
`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, translate("list inconsistent", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, translate("list inconsistent", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list inconsistent", err)
	}
	return ids, nil
}

func (s *PGStore) WithinAgreement(ctx context.Context, id string, fn func(Unit) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return translate("begin tx", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAgreement(tx.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements a WHERE a.id = $1 FOR UPDATE`, id))
	if err != nil {
		return translate("lock agreement", err)
	}

	if err := fn(&pgUnit{tx: tx, agreement: a, outbox: s.outbox}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return translate("commit tx", err)
	}
	return nil
}

type pgUnit struct {
	tx        pgx.Tx
	agreement Agreement
	outbox    OutboxWriter
}

func (u *pgUnit) Agreement() Agreement { return u.agreement }

func (u *pgUnit) Parties(ctx context.Context) ([]Party, error) {
	parties, err := queryParties(ctx, u.tx, `p.agreement_id = $1`, u.agreement.ID)
	if err != nil {
		return nil, translate("list parties", err)
	}
	return parties, nil
}

func (u *pgUnit) PartyFor(ctx context.Context, userID string) (Party, bool, error) {
	parties, err := queryParties(ctx, u.tx, `p.agreement_id = $1 AND p.user_id = $2`, u.agreement.ID, userID)
	if err != nil {
		return Party{}, false, translate("get party", err)
	}
	if len(parties) == 0 {
		return Party{}, false, nil
	}
	return parties[0], true, nil
}

func (u *pgUnit) InsertParty(ctx context.Context, p Party) (Party, error) {
	const insertSQL = `
INSERT INTO agreement_parties (agreement_id, user_id, role, status, invited_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text
`
	p.AgreementID = u.agreement.ID
	if err := u.tx.QueryRow(ctx, insertSQL, p.AgreementID, p.UserID, string(p.Role), string(p.Status), p.InvitedAt).Scan(&p.ID); err != nil {
		return Party{}, translate("insert party", err)
	}
	return p, nil
}

func (u *pgUnit) SetPartyStatus(ctx context.Context, partyID string, status PartyStatus, respondedAt *time.Time) error {
	tag, err := u.tx.Exec(ctx, `UPDATE agreement_parties SET status = $2, responded_at = $3 WHERE id = $1 AND agreement_id = $4`,
		partyID, string(status), respondedAt, u.agreement.ID)
	if err != nil {
		return translate("update party", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (u *pgUnit) InsertSignature(ctx context.Context, sig Signature) (Signature, error) {
	data, err := encodePayload(sig.Payload)
	if err != nil {
		return Signature{}, fmt.Errorf("agreement: encode signature: %w", err)
	}
	const insertSQL = `
INSERT INTO signatures (agreement_id, user_id, signature_type, signature_data, ip_address, user_agent, signed_at)
VALUES ($1, $2, $3, $4::jsonb, NULLIF($5, ''), NULLIF($6, ''), $7)
RETURNING id::text
`
	sig.AgreementID = u.agreement.ID
	sig.Kind = sig.Payload.Kind()
	err = u.tx.QueryRow(ctx, insertSQL, sig.AgreementID, sig.UserID, string(sig.Kind), string(data), sig.IPAddress, sig.UserAgent, sig.SignedAt).
		Scan(&sig.ID)
	if err != nil {
		return Signature{}, translate("insert signature", err)
	}
	return sig, nil
}

func (u *pgUnit) SignatureFor(ctx context.Context, userID string) (Signature, bool, error) {
	sigs, err := querySignatures(ctx, u.tx, `s.agreement_id = $1 AND s.user_id = $2`, u.agreement.ID, userID)
	if err != nil {
		return Signature{}, false, translate("get signature", err)
	}
	if len(sigs) == 0 {
		return Signature{}, false, nil
	}
	return sigs[0], true, nil
}

func (u *pgUnit) SetStatus(ctx context.Context, status Status) error {
	var updated time.Time
	err := u.tx.QueryRow(ctx, `UPDATE agreements SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		u.agreement.ID, string(status)).Scan(&updated)
	if err != nil {
		return translate("update status", err)
	}
	u.agreement.Status = status
	u.agreement.UpdatedAt = updated
	return nil
}

func (u *pgUnit) Update(ctx context.Context, patch Patch) (Agreement, error) {
	var form *string
	if patch.FormData != nil {
		encoded, err := marshalForm(patch.FormData)
		if err != nil {
			return Agreement{}, err
		}
		form = &encoded
	}
	const updateSQL = `
UPDATE agreements a
SET title = COALESCE($2, a.title),
    content = COALESCE($3, a.content),
    form_data = COALESCE($4::jsonb, a.form_data),
    updated_at = now()
WHERE a.id = $1
RETURNING ` + agreementColumns

	a, err := scanAgreement(u.tx.QueryRow(ctx, updateSQL, u.agreement.ID, patch.Title, patch.Content, form))
	if err != nil {
		return Agreement{}, translate("update agreement", err)
	}
	u.agreement = a
	return a, nil
}

func (u *pgUnit) SetDocumentURL(ctx context.Context, url string) error {
	if _, err := u.tx.Exec(ctx, `UPDATE agreements SET document_url = $2, updated_at = now() WHERE id = $1`, u.agreement.ID, url); err != nil {
		return translate("set document url", err)
	}
	u.agreement.DocumentURL = &url
	return nil
}

func (u *pgUnit) Delete(ctx context.Context) error {
	if _, err := u.tx.Exec(ctx, `DELETE FROM agreements WHERE id = $1`, u.agreement.ID); err != nil {
		return translate("delete agreement", err)
	}
	return nil
}

func (u *pgUnit) Enqueue(ctx context.Context, msg notify.Message) error {
	if err := u.outbox.Enqueue(ctx, u.tx, msg); err != nil {
		if errors.Is(err, notify.ErrInvalidMessage) {
			return err
		}
		return &StoreError{Op: "enqueue notification", Err: err}
	}
	return nil
}

func (u *pgUnit) OTPs() auth.OTPStore { return auth.NewOTPRepository(u.tx) }

func scanAgreement(row pgx.Row) (Agreement, error) {
	var (
		a      Agreement
		kind   string
		status string
		form   []byte
	)
	err := row.Scan(&a.ID, &a.Title, &kind, &a.Content, &form, &status, &a.CreatorID, &a.CreatorEmail, &a.DocumentURL, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Agreement{}, err
	}
	a.Type = Type(kind)
	a.Status = Status(status)
	a.FormData = map[string]string{}
	if len(form) > 0 {
		if err := json.Unmarshal(form, &a.FormData); err != nil {
			return Agreement{}, fmt.Errorf("decode form_data: %w", err)
		}
	}
	return a, nil
}

// loadChildren fills Parties and Signatures for every agreement in out.
func loadChildren(ctx context.Context, q querier, out []Agreement) error {
	if len(out) == 0 {
		return nil
	}
	ids := make([]string, len(out))
	index := make(map[string]int, len(out))
	for i := range out {
		ids[i] = out[i].ID
		index[out[i].ID] = i
		out[i].Parties = []Party{}
		out[i].Signatures = []Signature{}
	}

	parties, err := queryParties(ctx, q, `p.agreement_id::text = ANY($1)`, ids)
	if err != nil {
		return translate("load parties", err)
	}
	for _, p := range parties {
		i := index[p.AgreementID]
		out[i].Parties = append(out[i].Parties, p)
	}

	sigs, err := querySignatures(ctx, q, `s.agreement_id::text = ANY($1)`, ids)
	if err != nil {
		return translate("load signatures", err)
	}
	for _, s := range sigs {
		i := index[s.AgreementID]
		out[i].Signatures = append(out[i].Signatures, s)
	}
	return nil
}

func queryParties(ctx context.Context, q querier, where string, args ...any) ([]Party, error) {
	query := `
SELECT p.id::text, p.agreement_id::text, p.user_id::text, pr.email, p.role, p.status, p.invited_at, p.responded_at
FROM agreement_parties p
JOIN profiles pr ON pr.id = p.user_id
WHERE ` + where + `
ORDER BY p.invited_at, p.id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Party
	for rows.Next() {
		var (
			p      Party
			role   string
			status string
		)
		if err := rows.Scan(&p.ID, &p.AgreementID, &p.UserID, &p.Email, &role, &status, &p.InvitedAt, &p.RespondedAt); err != nil {
			return nil, err
		}
		p.Role = PartyRole(role)
		p.Status = PartyStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func querySignatures(ctx context.Context, q querier, where string, args ...any) ([]Signature, error) {
	query := `
SELECT s.id::text, s.agreement_id::text, s.user_id::text, s.signature_type, s.signature_data,
       COALESCE(s.ip_address, ''), COALESCE(s.user_agent, ''), s.signed_at
FROM signatures s
WHERE ` + where + `
ORDER BY s.signed_at, s.id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Signature
	for rows.Next() {
		var (
			s    Signature
			kind string
			data []byte
		)
		if err := rows.Scan(&s.ID, &s.AgreementID, &s.UserID, &kind, &data, &s.IPAddress, &s.UserAgent, &s.SignedAt); err != nil {
			return nil, err
		}
		s.Kind = SignatureKind(kind)
		payload, err := decodePayload(s.Kind, data)
		if err != nil {
			return nil, fmt.Errorf("decode signature %s: %w", s.ID, err)
		}
		s.Payload = payload
		out = append(out, s)
	}
	return out, rows.Err()
}

func marshalForm(form map[string]string) (string, error) {
	if form == nil {
		form = map[string]string{}
	}
	b, err := json.Marshal(form)
	if err != nil {
		return "", fmt.Errorf("agreement: encode form data: %w", err)
	}
	return string(b), nil
}
