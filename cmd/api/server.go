package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"pactflow/agreement"
	"pactflow/auth"
	"pactflow/metrics"
	"pactflow/middleware"
	"pactflow/profile"
	"pactflow/translate"
)

// Server holds the HTTP handlers and the services they call.
type Server struct {
	agreements *agreement.Service
	accounts   *auth.Service
	tokens     middleware.TokenVerifier
	profiles   *profile.Service
	otp        *auth.OTPService
	translator translate.Translator
	limiter    *middleware.RateLimiter
	collector  *metrics.Collector
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	now        func() time.Time
}

// Routes builds the chi router. Auth routes are public; everything else under
// /api requires a bearer token.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(s.logger))
	r.Use(middleware.NewLoggingMiddleware(s.logger))
	if s.collector != nil {
		r.Use(s.collector.Middleware)
	}
	r.Use(chimw.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.tokens))
			if s.limiter != nil {
				r.Use(s.limiter.GeneralMiddleware())
			}

			r.Get("/me", s.handleMe)
			r.Patch("/me", s.handleUpdateMe)
			r.Post("/me/password", s.handleChangePassword)

			r.Get("/agreements", s.handleListAgreements)
			r.Post("/agreements", s.handleCreateAgreement)
			r.Get("/agreements/stats", s.handleStats)
			r.Post("/agreements/generate", s.handleGenerate)

			r.Route("/agreements/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAgreement)
				r.Patch("/", s.handleUpdateAgreement)
				r.Delete("/", s.handleDeleteAgreement)
				r.Post("/parties", s.handleInvite)
				r.Post("/view", s.handleView)
				r.With(s.signLimit).Post("/sign", s.handleSign)
				r.With(s.signLimit).Post("/otp", s.handleIssueOTP)
				r.Post("/reject", s.handleReject)
				r.Post("/remind", s.handleRemind)
				r.Get("/audit", s.handleAudit)
				r.Get("/document", s.handleDocument)
				r.Post("/export", s.handleExport)
			})

			r.Post("/translate", s.handleTranslate)
		})
	})
	return r
}

func (s *Server) signLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.SignMiddleware()(next)
}

func clientMeta(r *http.Request) agreement.ClientMeta {
	return agreement.ClientMeta{IPAddress: r.RemoteAddr, UserAgent: r.UserAgent()}
}

// --- auth ---

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Mobile    string `json:"mobile"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Mobile      string `json:"mobile,omitempty"`
	DisplayName string `json:"displayName"`
}

func fromProfile(p profile.Profile) userResponse {
	return userResponse{
		ID:          p.ID,
		Email:       p.Email,
		Username:    p.Username,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Mobile:      p.Mobile,
		DisplayName: p.DisplayName(),
	}
}

func fromUser(u auth.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: u.DisplayName(),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.accounts.Register(r.Context(), auth.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Mobile:    req.Mobile,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, fromUser(*user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.accounts.Login(r.Context(), auth.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"token": res.Token,
		"user":  fromUser(res.User),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	prof, err := s.profiles.Get(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, fromProfile(prof))
}

type updateProfileRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Mobile    *string `json:"mobile"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p := middleware.PrincipalFromContext(r.Context())
	prof, err := s.profiles.Update(r.Context(), p.ID, profile.UpdateParams{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Mobile:    req.Mobile,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, fromProfile(prof))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p := middleware.PrincipalFromContext(r.Context())
	err := s.accounts.ChangePassword(r.Context(), p.ID, auth.ChangePasswordRequest{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- agreements ---

type partyResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	Status      string  `json:"status"`
	InvitedAt   string  `json:"invitedAt"`
	RespondedAt *string `json:"respondedAt,omitempty"`
}

type signatureResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Type      string `json:"signatureType"`
	Name      string `json:"name,omitempty"`
	Verified  *bool  `json:"verified,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	SignedAt  string `json:"signedAt"`
}

type agreementResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Type        string              `json:"type"`
	Content     string              `json:"content"`
	FormData    map[string]string   `json:"formData"`
	Status      string              `json:"status"`
	CreatorID   string              `json:"creatorId"`
	DocumentURL *string             `json:"documentUrl,omitempty"`
	CreatedAt   string              `json:"createdAt"`
	UpdatedAt   string              `json:"updatedAt"`
	Parties     []partyResponse     `json:"parties"`
	Signatures  []signatureResponse `json:"signatures"`
}

func fromAgreement(a agreement.Agreement) agreementResponse {
	resp := agreementResponse{
		ID:          a.ID,
		Title:       a.Title,
		Type:        string(a.Type),
		Content:     a.Content,
		FormData:    a.FormData,
		Status:      string(a.Status),
		CreatorID:   a.CreatorID,
		DocumentURL: a.DocumentURL,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   a.UpdatedAt.UTC().Format(time.RFC3339),
		Parties:     make([]partyResponse, 0, len(a.Parties)),
		Signatures:  make([]signatureResponse, 0, len(a.Signatures)),
	}
	if resp.FormData == nil {
		resp.FormData = map[string]string{}
	}
	for _, p := range a.Parties {
		pr := partyResponse{
			ID:        p.ID,
			UserID:    p.UserID,
			Email:     p.Email,
			Role:      string(p.Role),
			Status:    string(p.Status),
			InvitedAt: p.InvitedAt.UTC().Format(time.RFC3339),
		}
		if p.RespondedAt != nil {
			at := p.RespondedAt.UTC().Format(time.RFC3339)
			pr.RespondedAt = &at
		}
		resp.Parties = append(resp.Parties, pr)
	}
	for _, sig := range a.Signatures {
		sr := signatureResponse{
			ID:        sig.ID,
			UserID:    sig.UserID,
			Type:      string(sig.Kind),
			IPAddress: sig.IPAddress,
			SignedAt:  sig.SignedAt.UTC().Format(time.RFC3339),
		}
		switch payload := sig.Payload.(type) {
		case agreement.DigitalPayload:
			sr.Name = payload.Name
		case agreement.OTPPayload:
			verified := payload.Verified
			sr.Verified = &verified
		}
		resp.Signatures = append(resp.Signatures, sr)
	}
	return resp
}

func fromAgreements(list []agreement.Agreement) []agreementResponse {
	out := make([]agreementResponse, 0, len(list))
	for _, a := range list {
		out = append(out, fromAgreement(a))
	}
	return out
}

func (s *Server) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())

	var (
		list []agreement.Agreement
		err  error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		list, err = s.agreements.ListByStatus(r.Context(), p, agreement.Status(status))
	} else {
		list, err = s.agreements.ListForUser(r.Context(), p)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"items": fromAgreements(list),
		"total": len(list),
	})
}

type createAgreementRequest struct {
	Title    string            `json:"title"`
	Type     string            `json:"type"`
	Content  string            `json:"content"`
	FormData map[string]string `json:"formData"`
}

func (s *Server) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req createAgreementRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p := middleware.PrincipalFromContext(r.Context())
	a, err := s.agreements.Create(r.Context(), p, agreement.CreateParams{
		Title:    req.Title,
		Type:     agreement.Type(req.Type),
		Content:  req.Content,
		FormData: req.FormData,
	}, clientMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, fromAgreement(a))
}

type generateRequest struct {
	Type     string            `json:"type"`
	FormData map[string]string `json:"formData"`
}

type draftResponse struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Missing     []string `json:"missing"`
	Suggestions []string `json:"suggestions"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.agreements.Generate(r.Context(), middleware.PrincipalFromContext(r.Context()), agreement.Type(req.Type), req.FormData)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, draftResponse{
		Title:       d.Title,
		Content:     d.Content,
		Missing:     d.Missing,
		Suggestions: d.Suggestions,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.agreements.Stats(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	a, err := s.agreements.Get(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, fromAgreement(a))
}

type updateAgreementRequest struct {
	Title    *string           `json:"title"`
	Content  *string           `json:"content"`
	FormData map[string]string `json:"formData"`
}

func (s *Server) handleUpdateAgreement(w http.ResponseWriter, r *http.Request) {
	var req updateAgreementRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.agreements.Update(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), agreement.Patch{
		Title:    req.Title,
		Content:  req.Content,
		FormData: req.FormData,
	}, clientMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, fromAgreement(a))
}

func (s *Server) handleDeleteAgreement(w http.ResponseWriter, r *http.Request) {
	err := s.agreements.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), clientMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	party, err := s.agreements.Invite(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), req.Email, clientMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, partyResponse{
		ID:        party.ID,
		UserID:    party.UserID,
		Email:     party.Email,
		Role:      string(party.Role),
		Status:    string(party.Status),
		InvitedAt: party.InvitedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if err := s.agreements.MarkViewed(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), clientMeta(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type signRequest struct {
	SignatureType string          `json:"signatureType"`
	SignatureData json.RawMessage `json:"signatureData"`
}

// decodePayload picks the payload variant named by signatureType.
func decodePayload(req signRequest, now time.Time) (agreement.Payload, error) {
	if len(req.SignatureData) == 0 {
		return nil, agreement.ErrInvalidSignature
	}
	switch agreement.SignatureKind(req.SignatureType) {
	case agreement.KindDigital:
		var p agreement.DigitalPayload
		if err := json.Unmarshal(req.SignatureData, &p); err != nil {
			return nil, agreement.ErrInvalidSignature
		}
		p.Timestamp = now
		return p, nil
	case agreement.KindOTP:
		var p agreement.OTPPayload
		if err := json.Unmarshal(req.SignatureData, &p); err != nil {
			return nil, agreement.ErrInvalidSignature
		}
		p.Verified = false
		p.Timestamp = now
		return p, nil
	default:
		return nil, agreement.ErrInvalidSignature
	}
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	payload, err := decodePayload(req, s.now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	meta := clientMeta(r)
	res, err := s.agreements.Sign(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), agreement.SignRequest{
		Payload:   payload,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"completed":     res.Completed,
		"status":        res.Status,
		"alreadySigned": res.AlreadySigned,
	})
}

// handleIssueOTP issues a signing code to a party that has not responded.
// There is no SMS channel, so the code goes back to the authenticated party.
func (s *Server) handleIssueOTP(w http.ResponseWriter, r *http.Request) {
	if s.otp == nil {
		s.writeError(w, r, agreement.ErrNotFound)
		return
	}
	p := middleware.PrincipalFromContext(r.Context())
	a, err := s.agreements.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	party, ok := a.PartyFor(p.ID)
	if !ok {
		s.writeError(w, r, agreement.ErrNotAParty)
		return
	}
	if party.Status.Final() {
		s.writeError(w, r, agreement.ErrAlreadyResponded)
		return
	}
	code, expiresAt, err := s.otp.Issue(r.Context(), a.ID, p.ID)
	if err != nil {
		s.writeError(w, r, &agreement.StoreError{Op: "issue otp", Err: err})
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"code":      code,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := middleware.ReadJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	status, err := s.agreements.Reject(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), req.Reason, clientMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (s *Server) handleRemind(w http.ResponseWriter, r *http.Request) {
	n, err := s.agreements.RequestSignature(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), clientMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]any{"queued": n})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.agreements.AuditTrail(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.agreements.Document(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.agreements.Export(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), clientMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body := map[string]any{"name": res.Document.Name}
	if res.URL != "" {
		body["url"] = res.URL
	}
	middleware.WriteJSON(w, http.StatusOK, body)
}

type translateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := middleware.ReadJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := translate.ParseTarget(req.Target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.translator.Translate(r.Context(), req.Text, target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"text":   res.Text,
		"source": res.Source.String(),
		"target": res.Target.String(),
	})
}

// --- errors ---

type errorMapping struct {
	target error
	apiErr middleware.APIError
}

// businessErrors are expected rejections; they are logged at info.
var businessErrors = []errorMapping{
	{agreement.ErrAuthentication, middleware.APIError{Status: http.StatusUnauthorized, Code: "AUTHENTICATION_REQUIRED", Message: "sign in to continue"}},
	{auth.ErrInvalidToken, middleware.APIError{Status: http.StatusUnauthorized, Code: "AUTHENTICATION_REQUIRED", Message: "sign in to continue"}},
	{auth.ErrInvalidCredentials, middleware.APIError{Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS", Message: "email or password is incorrect"}},
	{agreement.ErrNotAParty, middleware.APIError{Status: http.StatusForbidden, Code: "NOT_A_PARTY", Message: "you are not a party to this agreement"}},
	{agreement.ErrAuthorization, middleware.APIError{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "you are not allowed to do that"}},
	{agreement.ErrRecipientNotFound, middleware.APIError{Status: http.StatusNotFound, Code: "RECIPIENT_NOT_REGISTERED", Message: "the recipient must register first"}},
	{agreement.ErrNotFound, middleware.APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "not found"}},
	{profile.ErrNotFound, middleware.APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "not found"}},
	{agreement.ErrDuplicateParty, middleware.APIError{Status: http.StatusConflict, Code: "DUPLICATE_PARTY", Message: "this user is already a party"}},
	{auth.ErrDuplicateEmail, middleware.APIError{Status: http.StatusConflict, Code: "EMAIL_TAKEN", Message: "an account with this email already exists"}},
	{agreement.ErrAlreadyResponded, middleware.APIError{Status: http.StatusConflict, Code: "ALREADY_RESPONDED", Message: "you have already responded to this agreement"}},
	{agreement.ErrInvalidSignature, middleware.APIError{Status: http.StatusUnprocessableEntity, Code: "INVALID_SIGNATURE", Message: "the signature is invalid"}},
}

// inputErrors map to INVALID_INPUT and carry the error text.
var inputErrors = []error{
	agreement.ErrInvalidInput,
	middleware.ErrBadRequestBody,
	profile.ErrInvalidProfile,
	auth.ErrWeakPassword,
	auth.ErrInvalidRegistration,
	translate.ErrUnsupportedLanguage,
}

// writeError maps err onto the API taxonomy. Unknown errors are store or
// internal failures: logged at error with the request id, and shown generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range businessErrors {
		if errors.Is(err, m.target) {
			apiErr := m.apiErr
			if m.target == agreement.ErrInvalidSignature {
				apiErr.Message = err.Error()
			}
			id := middleware.WriteError(w, &apiErr)
			s.logger.InfoContext(r.Context(), "request rejected",
				slog.String("request_id", id), slog.String("code", apiErr.Code), slog.Any("error", err))
			return
		}
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			middleware.WriteError(w, &middleware.APIError{Status: http.StatusBadRequest, Code: "INVALID_INPUT", Message: err.Error()})
			return
		}
	}

	if errors.Is(err, context.Canceled) {
		return
	}
	apiErr := &middleware.APIError{Status: http.StatusInternalServerError, Code: "STORE_ERROR", Message: "something went wrong, please try again"}
	if !errors.Is(err, agreement.ErrStore) {
		apiErr = middleware.ErrInternal
	}
	id := middleware.WriteError(w, apiErr)
	s.logger.ErrorContext(r.Context(), "request failed",
		slog.String("request_id", id),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
}
