package agreement

import (
	"context"
	"errors"
	"fmt"

	"pactflow/audit"
	"pactflow/auth"
	"pactflow/notify"
	"pactflow/profile"
)

// Invite adds the registered user with email as a pending signer and queues
// an invitation. The agreement status is recomputed in the same unit, so the
// first invitation moves a draft to pending. The invitee is resolved before
// the agreement is locked; a lookup failure is reported only after the
// creator check passes.
func (s *Service) Invite(ctx context.Context, p auth.Principal, agreementID, email string, meta ClientMeta) (Party, error) {
	if err := requirePrincipal(p); err != nil {
		return Party{}, err
	}
	email = profile.NormalizeEmail(email)
	if email == "" {
		return Party{}, invalidInput("email is required")
	}

	invitee, lookupErr := s.directory.GetByEmail(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, profile.ErrNotFound) {
			lookupErr = ErrRecipientNotFound
		} else {
			lookupErr = &StoreError{Op: "lookup recipient", Err: lookupErr}
		}
	}

	var party Party
	err := s.store.WithinAgreement(ctx, agreementID, func(u Unit) error {
		a := u.Agreement()
		if a.CreatorID != p.ID {
			return ErrAuthorization
		}
		if a.Status == StatusCompleted || a.Status == StatusRejected {
			return invalidInput(fmt.Sprintf("cannot invite to a %s agreement", a.Status))
		}
		if lookupErr != nil {
			return lookupErr
		}
		if invitee.ID == a.CreatorID {
			return invalidInput("the creator cannot invite themselves")
		}

		var err error
		party, err = u.InsertParty(ctx, Party{
			UserID:    invitee.ID,
			Email:     invitee.Email,
			Role:      RoleSigner,
			Status:    PartyPending,
			InvitedAt: s.now().UTC(),
		})
		if err != nil {
			return err
		}

		if _, _, err := s.transition(ctx, u); err != nil {
			return err
		}

		return u.Enqueue(ctx, notify.Message{
			To:             invitee.Email,
			Type:           notify.TypeInvitation,
			AgreementTitle: a.Title,
			SenderName:     senderName(p),
			AgreementID:    a.ID,
			InviteLink:     s.inviteLink(a.ID),
		})
	})
	if err != nil {
		return Party{}, err
	}

	s.record(ctx, audit.ActionPartyInvited, agreementID, p.ID, meta, map[string]any{
		"email":         party.Email,
		"invitedUserId": party.UserID,
	})
	s.observer.PartyInvited()
	return party, nil
}

// RequestSignature reminds every party that has not responded yet. It
// returns how many reminders were queued.
func (s *Service) RequestSignature(ctx context.Context, p auth.Principal, agreementID string, meta ClientMeta) (int, error) {
	if err := requirePrincipal(p); err != nil {
		return 0, err
	}

	sent := 0
	err := s.store.WithinAgreement(ctx, agreementID, func(u Unit) error {
		a := u.Agreement()
		if a.CreatorID != p.ID {
			return ErrAuthorization
		}
		if a.Status == StatusCompleted || a.Status == StatusRejected {
			return invalidInput(fmt.Sprintf("agreement is already %s", a.Status))
		}
		parties, err := u.Parties(ctx)
		if err != nil {
			return err
		}
		for _, party := range parties {
			if party.Status.Final() {
				continue
			}
			err := u.Enqueue(ctx, notify.Message{
				To:             party.Email,
				Type:           notify.TypeSignatureRequest,
				AgreementTitle: a.Title,
				SenderName:     senderName(p),
				AgreementID:    a.ID,
				InviteLink:     s.inviteLink(a.ID),
			})
			if err != nil {
				return err
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.record(ctx, audit.ActionSignatureRequest, agreementID, p.ID, meta, map[string]any{"count": sent})
	return sent, nil
}

// transition re-derives the status from the locked party rows and stores it
// when it changed. Reaching completed queues the completion notices.
func (s *Service) transition(ctx context.Context, u Unit) (from, to Status, err error) {
	parties, err := u.Parties(ctx)
	if err != nil {
		return "", "", err
	}
	from = u.Agreement().Status
	to = Aggregate(from, statusesOf(parties))
	if to == from {
		return from, to, nil
	}
	if err := u.SetStatus(ctx, to); err != nil {
		return "", "", err
	}
	if to == StatusCompleted {
		if err := s.enqueueCompleted(ctx, u, parties); err != nil {
			return "", "", err
		}
	}
	return from, to, nil
}
