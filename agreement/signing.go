package agreement

import (
	"context"
	"fmt"
	"time"

	"pactflow/audit"
	"pactflow/auth"
)

// SignRequest carries the signer's payload and client details.
type SignRequest struct {
	Payload   Payload
	IPAddress string
	UserAgent string
}

// SignResult reports the agreement state after a signature.
type SignResult struct {
	Status        Status
	Completed     bool
	AlreadySigned bool
}

// Sign records p's signature, marks the party signed and recomputes the
// agreement status in one unit. Signing twice is not an error: the second
// call reports AlreadySigned and changes nothing, with Completed set only for
// the party whose signature completed the agreement. Once the unit starts the
// caller's cancellation no longer aborts it.
func (s *Service) Sign(ctx context.Context, p auth.Principal, agreementID string, req SignRequest) (SignResult, error) {
	if err := requirePrincipal(p); err != nil {
		return SignResult{}, err
	}
	if req.Payload == nil {
		return SignResult{}, fmt.Errorf("%w: payload is required", ErrInvalidSignature)
	}
	if err := req.Payload.Validate(); err != nil {
		return SignResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	ctx = context.WithoutCancel(ctx)

	var (
		result SignResult
		kind   SignatureKind
	)
	err := s.store.WithinAgreement(ctx, agreementID, func(u Unit) error {
		party, ok, err := u.PartyFor(ctx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAParty
		}
		switch party.Status {
		case PartySigned:
			result = SignResult{Status: u.Agreement().Status, AlreadySigned: true}
			if result.Status == StatusCompleted {
				parties, err := u.Parties(ctx)
				if err != nil {
					return err
				}
				result.Completed = completingParty(parties) == party.ID
			}
			return nil
		case PartyRejected:
			return ErrAlreadyResponded
		}
		if st := u.Agreement().Status; st == StatusRejected || st == StatusCompleted {
			return invalidInput(fmt.Sprintf("agreement is already %s", st))
		}

		payload, err := s.verifyPayload(ctx, u, p.ID, req.Payload)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		sig, err := u.InsertSignature(ctx, Signature{
			UserID:    p.ID,
			Kind:      payload.Kind(),
			Payload:   payload,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
			SignedAt:  now,
		})
		if err != nil {
			return err
		}
		kind = sig.Kind

		if err := u.SetPartyStatus(ctx, party.ID, PartySigned, &now); err != nil {
			return err
		}
		_, to, err := s.transition(ctx, u)
		if err != nil {
			return err
		}
		result = SignResult{Status: to, Completed: to == StatusCompleted}
		return nil
	})
	if err != nil {
		return SignResult{}, err
	}
	if result.AlreadySigned {
		return result, nil
	}

	s.record(ctx, audit.ActionSigned, agreementID, p.ID, ClientMeta{IPAddress: req.IPAddress, UserAgent: req.UserAgent}, map[string]any{
		"signatureKind": string(kind),
		"allSigned":     result.Completed,
	})
	s.observer.SignatureRecorded(string(kind))
	if result.Completed {
		s.observer.AgreementCompleted()
	}
	return result, nil
}

// completingParty returns the id of the signed party whose signature came
// last. Equal times keep the later party in invitation order.
func completingParty(parties []Party) string {
	var (
		id   string
		last time.Time
	)
	for _, p := range parties {
		if p.Status != PartySigned || p.RespondedAt == nil {
			continue
		}
		if id == "" || !p.RespondedAt.Before(last) {
			id, last = p.ID, *p.RespondedAt
		}
	}
	return id
}

// verifyPayload consumes the one-time code of an OTP signature inside u.
// Without a configured verifier the code is accepted as is.
func (s *Service) verifyPayload(ctx context.Context, u Unit, userID string, payload Payload) (Payload, error) {
	otp, ok := payload.(OTPPayload)
	if !ok {
		return payload, nil
	}
	if s.otp != nil {
		if err := s.otp.Verify(ctx, u.OTPs(), u.Agreement().ID, userID, otp.Code); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}
	otp.Verified = true
	if otp.Timestamp.IsZero() {
		otp.Timestamp = s.now().UTC()
	}
	return otp, nil
}

// MarkViewed moves p's party from pending to viewed. Other states are left
// as they are.
func (s *Service) MarkViewed(ctx context.Context, p auth.Principal, agreementID string, meta ClientMeta) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}

	changed := false
	err := s.store.WithinAgreement(ctx, agreementID, func(u Unit) error {
		party, ok, err := u.PartyFor(ctx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAParty
		}
		if party.Status != PartyPending {
			return nil
		}
		changed = true
		return u.SetPartyStatus(ctx, party.ID, PartyViewed, nil)
	})
	if err != nil {
		return err
	}
	if changed {
		s.record(ctx, audit.ActionViewed, agreementID, p.ID, meta, nil)
	}
	return nil
}

// Reject records p's refusal. The agreement becomes rejected and stays so.
// Rejecting again is a no-op; rejecting after signing is ErrAlreadyResponded.
func (s *Service) Reject(ctx context.Context, p auth.Principal, agreementID, reason string, meta ClientMeta) (Status, error) {
	if err := requirePrincipal(p); err != nil {
		return "", err
	}
	ctx = context.WithoutCancel(ctx)

	var (
		status  Status
		changed bool
	)
	err := s.store.WithinAgreement(ctx, agreementID, func(u Unit) error {
		party, ok, err := u.PartyFor(ctx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAParty
		}
		switch party.Status {
		case PartyRejected:
			status = u.Agreement().Status
			return nil
		case PartySigned:
			return ErrAlreadyResponded
		}
		if u.Agreement().Status == StatusCompleted {
			return invalidInput("agreement is already completed")
		}

		now := s.now().UTC()
		if err := u.SetPartyStatus(ctx, party.ID, PartyRejected, &now); err != nil {
			return err
		}
		_, status, err = s.transition(ctx, u)
		changed = true
		return err
	})
	if err != nil {
		return "", err
	}

	if changed {
		details := map[string]any{}
		if reason != "" {
			details["reason"] = reason
		}
		s.record(ctx, audit.ActionRejected, agreementID, p.ID, meta, details)
	}
	return status, nil
}
