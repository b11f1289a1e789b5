package agreement

import (
	"context"
	"fmt"
	"time"

	"pactflow/audit"
	"pactflow/auth"
	"pactflow/document"
)

// Generate previews the agreement text for a type without storing anything.
// The draft carries a default title, the form fields still missing and
// drafting suggestions for the type.
func (s *Service) Generate(ctx context.Context, p auth.Principal, kind Type, form map[string]string) (document.Draft, error) {
	if err := requirePrincipal(p); err != nil {
		return document.Draft{}, err
	}
	if !kind.Valid() {
		return document.Draft{}, invalidInput(fmt.Sprintf("unknown agreement type %q", kind))
	}
	return document.Generate(string(kind), form, s.now()), nil
}

// Create stores a new draft owned by p. Empty content is rendered from the
// template for the agreement type.
func (s *Service) Create(ctx context.Context, p auth.Principal, params CreateParams, meta ClientMeta) (Agreement, error) {
	if err := requirePrincipal(p); err != nil {
		return Agreement{}, err
	}
	title := normalizeTitle(params.Title)
	if title == "" {
		return Agreement{}, invalidInput("title is required")
	}
	if !params.Type.Valid() {
		return Agreement{}, invalidInput(fmt.Sprintf("unknown agreement type %q", params.Type))
	}

	content := params.Content
	if content == "" {
		content, _ = document.RenderAt(string(params.Type), params.FormData, s.now())
	}

	a, err := s.store.Create(ctx, Agreement{
		Title:        title,
		Type:         params.Type,
		Content:      content,
		FormData:     cloneForm(params.FormData),
		Status:       StatusDraft,
		CreatorID:    p.ID,
		CreatorEmail: p.Email,
	})
	if err != nil {
		return Agreement{}, err
	}

	s.record(ctx, audit.ActionCreated, a.ID, p.ID, meta, map[string]any{"title": a.Title})
	return a, nil
}

// Get returns the agreement if p created it or is a party to it.
func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (Agreement, error) {
	if err := requirePrincipal(p); err != nil {
		return Agreement{}, err
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return Agreement{}, err
	}
	if !a.CanRead(p.ID) {
		return Agreement{}, ErrAuthorization
	}
	return a, nil
}

func (s *Service) ListForUser(ctx context.Context, p auth.Principal) ([]Agreement, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.store.ListForUser(ctx, p.ID)
}

func (s *Service) ListByStatus(ctx context.Context, p auth.Principal, status Status) ([]Agreement, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalidInput(fmt.Sprintf("unknown status %q", status))
	}
	return s.store.ListByStatus(ctx, p.ID, status)
}

// Stats counts the agreements visible to p. ThisMonth uses the current UTC month.
func (s *Service) Stats(ctx context.Context, p auth.Principal) (Stats, error) {
	if err := requirePrincipal(p); err != nil {
		return Stats{}, err
	}
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.store.Stats(ctx, p.ID, monthStart)
}

// Update edits a draft. Only the creator may update, and only while the
// agreement is still a draft. New form data without new content re-renders
// the content.
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, patch Patch, meta ClientMeta) (Agreement, error) {
	if err := requirePrincipal(p); err != nil {
		return Agreement{}, err
	}
	if patch.empty() {
		return Agreement{}, invalidInput("nothing to update")
	}
	if patch.Title != nil {
		title := normalizeTitle(*patch.Title)
		if title == "" {
			return Agreement{}, invalidInput("title cannot be empty")
		}
		patch.Title = &title
	}
	fields := patch.Fields()

	var updated Agreement
	err := s.store.WithinAgreement(ctx, id, func(u Unit) error {
		current := u.Agreement()
		if current.CreatorID != p.ID {
			return ErrAuthorization
		}
		if current.Status != StatusDraft {
			return invalidInput("only drafts can be edited")
		}
		if patch.FormData != nil && patch.Content == nil {
			content, _ := document.RenderAt(string(current.Type), patch.FormData, s.now())
			patch.Content = &content
		}
		var err error
		updated, err = u.Update(ctx, patch)
		return err
	})
	if err != nil {
		return Agreement{}, err
	}

	s.record(ctx, audit.ActionUpdated, id, p.ID, meta, map[string]any{"fields": fields})
	return s.store.Get(ctx, updated.ID)
}

// Delete removes an agreement. Only the creator may delete, and only while
// nobody has been invited; otherwise ErrAuthorization.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string, meta ClientMeta) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}

	var title string
	err := s.store.WithinAgreement(ctx, id, func(u Unit) error {
		a := u.Agreement()
		if a.CreatorID != p.ID {
			return ErrAuthorization
		}
		parties, err := u.Parties(ctx)
		if err != nil {
			return err
		}
		if len(parties) > 0 {
			return fmt.Errorf("%w: agreements with invited parties cannot be deleted", ErrAuthorization)
		}
		title = a.Title
		return u.Delete(ctx)
	})
	if err != nil {
		return err
	}

	s.record(ctx, audit.ActionDeleted, id, p.ID, meta, map[string]any{"title": title})
	return nil
}

// AuditTrail returns the audit entries of an agreement p can read.
func (s *Service) AuditTrail(ctx context.Context, p auth.Principal, id string) ([]audit.Entry, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}
	entries, err := s.auditor.List(ctx, id)
	if err != nil {
		return nil, &StoreError{Op: "list audit", Err: err}
	}
	return entries, nil
}
