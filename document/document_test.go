package document

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFillsValuesAndTracksMissing(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	out, missing := RenderAt("rental", map[string]string{
		"ownerName":  "Asha",
		"tenantName": "Ravi",
	}, day)

	assert.Contains(t, out, "# RENTAL AGREEMENT")
	assert.Contains(t, out, "Name: Asha")
	assert.Contains(t, out, "made on 01/03/2025")
	assert.Contains(t, out, "11 months", "default applies to leaseDuration")
	assert.Contains(t, out, "[monthlyRent]")
	assert.Equal(t, []string{"endDate", "monthlyRent", "propertyAddress", "securityDeposit", "startDate"}, missing)
}

func TestRenderUnknownTypeFallsBackToCustom(t *testing.T) {
	out, _ := RenderAt("lease-to-own", map[string]string{"agreementTitle": "Bike loan"}, time.Now())
	assert.True(t, strings.HasPrefix(out, "# BIKE LOAN"))

	out, _ = RenderAt("custom", nil, time.Now())
	assert.True(t, strings.HasPrefix(out, "# CUSTOM AGREEMENT"))
}

func TestRenderAllTypesComplete(t *testing.T) {
	for _, kind := range []string{"rental", "service", "nda", "sale", "custom"} {
		form := map[string]string{}
		for _, f := range Fields(kind) {
			form[f] = "x"
		}
		out, missing := RenderAt(kind, form, time.Now())
		assert.Empty(t, missing, kind)
		assert.NotContains(t, out, "{{", kind)
	}
}

func TestGenerateEveryType(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	titles := map[string]string{
		"rental":  "Residential Rental Agreement",
		"service": "Professional Service Agreement",
		"nda":     "Mutual Non-Disclosure Agreement",
		"sale":    "Sale Purchase Agreement",
		"custom":  "Custom Agreement",
	}
	for kind, title := range titles {
		t.Run(kind, func(t *testing.T) {
			d := Generate(kind, nil, day)
			assert.Equal(t, title, d.Title)
			assert.Len(t, d.Suggestions, 4)
			assert.Contains(t, d.Content, "01/03/2025")
			_, missing := RenderAt(kind, nil, day)
			assert.Equal(t, missing, d.Missing)
		})
	}
}

func TestGenerateCustomTitleFromForm(t *testing.T) {
	d := Generate("custom", map[string]string{"agreementTitle": " Bike loan "}, time.Now())
	assert.Equal(t, "Bike loan", d.Title)
	assert.True(t, strings.HasPrefix(d.Content, "# BIKE LOAN"))

	d = Generate("rental", map[string]string{"agreementTitle": "ignored"}, time.Now())
	assert.Equal(t, "Residential Rental Agreement", d.Title)

	d = Generate("lease-to-own", nil, time.Now())
	assert.Equal(t, "Custom Agreement", d.Title)
}

func TestGenerateSuggestionsAreCopies(t *testing.T) {
	d := Generate("nda", nil, time.Now())
	d.Suggestions[0] = "changed"
	assert.NotEqual(t, "changed", Generate("nda", nil, time.Now()).Suggestions[0])
}

func TestExportEscapesAndSanitises(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	exp := NewExporter().WithClock(func() time.Time { return at })

	doc, err := exp.Export(context.Background(), Source{
		Title:   "Flat <lease>",
		Status:  "pending",
		Content: "# RENTAL\n\n**Rent:** 500\n<script>alert(1)</script>\n\n- one\n- two",
	})
	require.NoError(t, err)

	body := string(doc.Body)
	assert.Equal(t, ContentTypeHTML, doc.ContentType)
	assert.Equal(t, "Flat_lease_2025-03-01.html", doc.Name)
	assert.Contains(t, body, "<h1>RENTAL</h1>")
	assert.Contains(t, body, "<strong>Rent:</strong> 500")
	assert.Contains(t, body, "<li>one</li>")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "Flat &lt;lease&gt;")
}

func TestExportHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExporter().Export(ctx, Source{Title: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeS3 struct {
	putKey  string
	putBody string
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.putKey = *in.Key
	b, _ := io.ReadAll(in.Body)
	f.putBody = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example/" + *in.Key + "?sig=1"}, nil
}

func TestS3StorePutReturnsPresignedLink(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store("docs", time.Hour, fake, fake)

	url, err := store.Put(context.Background(), "agreements/a1/doc.html", Document{Name: "doc.html", ContentType: ContentTypeHTML, Body: []byte("<p>hi</p>")})
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/agreements/a1/doc.html?sig=1", url)
	assert.Equal(t, "agreements/a1/doc.html", fake.putKey)
	assert.Equal(t, "<p>hi</p>", fake.putBody)
}

func TestS3StorePutErrors(t *testing.T) {
	fake := &fakeS3{putErr: errors.New("boom")}
	store := newS3Store("docs", 0, fake, fake)

	_, err := store.Put(context.Background(), "", Document{})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = store.Put(context.Background(), "k", Document{})
	assert.ErrorContains(t, err, "boom")
}

func TestNopStore(t *testing.T) {
	url, err := NopStore{}.Put(context.Background(), "k", Document{})
	assert.NoError(t, err)
	assert.Empty(t, url)
}
