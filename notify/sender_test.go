package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSender_PostsMessageJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// the safe client refuses loopback, so the test server's client is injected
	s := NewWebhookSender(srv.URL, srv.Client())
	require.NoError(t, s.Send(context.Background(), testMessage("tenant@example.com")))

	assert.Equal(t, "tenant@example.com", got["to"])
	assert.Equal(t, "invitation", got["type"])
	assert.Equal(t, "Flat lease", got["agreementTitle"])
	assert.Equal(t, "Uma Creator", got["senderName"])
	assert.Equal(t, "agr-1", got["agreementId"])
	assert.Equal(t, "https://app.example.com/agreement/agr-1", got["inviteLink"])
	assert.Equal(t, "Agreement Invitation: Flat lease", got["subject"])
}

func TestWebhookSender_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, srv.Client())
	err := s.Send(context.Background(), testMessage("tenant@example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestContent_SubjectsPerType(t *testing.T) {
	cases := map[Type]string{
		TypeInvitation:       "Agreement Invitation: Flat lease",
		TypeSignatureRequest: "Signature Required: Flat lease",
		TypeCompleted:        "Agreement Completed: Flat lease",
		Type("other"):        "Agreement Notification: Flat lease",
	}
	for typ, want := range cases {
		msg := testMessage("a@example.com")
		msg.Type = typ
		subject, html := Content(msg)
		assert.Equal(t, want, subject)
		assert.Contains(t, html, "Flat lease")
	}
}

func TestContent_EscapesUserSuppliedFields(t *testing.T) {
	msg := testMessage("a@example.com")
	msg.AgreementTitle = `<script>alert(1)</script>Lease`
	msg.InviteLink = "javascript:alert(1)"

	_, html := Content(msg)
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, strings.ToLower(html), "javascript:")
	assert.Contains(t, html, "Lease")
}
