package agreement

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"pactflow/audit"
	"pactflow/auth"
	"pactflow/document"
)

// ExportResult is an exported document and, when storage is configured, its link.
type ExportResult struct {
	Document document.Document
	URL      string
}

// Document renders the agreement as HTML without storing it.
func (s *Service) Document(ctx context.Context, p auth.Principal, id string) (document.Document, error) {
	a, err := s.Get(ctx, p, id)
	if err != nil {
		return document.Document{}, err
	}
	return s.render(ctx, a)
}

// Export renders the agreement, uploads it to the document store and records
// the link on the agreement.
func (s *Service) Export(ctx context.Context, p auth.Principal, id string, meta ClientMeta) (ExportResult, error) {
	a, err := s.Get(ctx, p, id)
	if err != nil {
		return ExportResult{}, err
	}
	doc, err := s.render(ctx, a)
	if err != nil {
		return ExportResult{}, err
	}

	key := "agreements/" + a.ID + "/" + uuid.NewString() + ".html"
	url, err := s.documents.Put(ctx, key, doc)
	if err != nil {
		return ExportResult{}, &StoreError{Op: "store document", Err: err}
	}
	if url != "" {
		err := s.store.WithinAgreement(ctx, a.ID, func(u Unit) error {
			return u.SetDocumentURL(ctx, url)
		})
		if err != nil {
			return ExportResult{}, err
		}
	}

	s.record(ctx, audit.ActionDocumentExported, a.ID, p.ID, meta, map[string]any{
		"name":   doc.Name,
		"stored": url != "",
	})
	return ExportResult{Document: doc, URL: url}, nil
}

func (s *Service) render(ctx context.Context, a Agreement) (document.Document, error) {
	doc, err := s.exporter.Export(ctx, document.Source{
		ID:      a.ID,
		Title:   a.Title,
		Content: a.Content,
		Status:  string(a.Status),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return document.Document{}, err
		}
		return document.Document{}, &StoreError{Op: "render document", Err: err}
	}
	return doc, nil
}
