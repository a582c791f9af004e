package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"medpassport/internal/auth"
	"medpassport/internal/config"
	"medpassport/internal/equivalency"
	"medpassport/internal/errors"
	"medpassport/internal/extract"
	"medpassport/internal/report"
	"medpassport/internal/segment"
	"medpassport/internal/storage"
	"medpassport/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "dr.nowak@example.com"
	testPassword = "correct horse battery"
)

type testServer struct {
	*httptest.Server
	srv *Server
}

func newTestServer(t *testing.T, rateLimit *config.RateLimitConfig) *testServer {
	t.Helper()

	logger := errors.NewLoggerTo(io.Discard, 0)
	mem := store.NewMemory()
	table := equivalency.Default()

	tokens := auth.NewTokenService(strings.Repeat("k", 32), "medpassport-test")
	authenticator := auth.NewAuthenticator(mem, tokens, nil, auth.Options{
		SessionTTL:        time.Hour,
		MinPasswordLength: 8,
		BcryptCost:        4,
	}, logger)

	bucket, err := storage.NewFSBucket(t.TempDir(), 1<<20)
	require.NoError(t, err)

	deps := Dependencies{
		Store:     mem,
		Auth:      authenticator,
		Extractor: extract.NewRegistry(1 << 20),
		Parser:    segment.NewKeywordParser(segment.New(5)),
		Table:     table,
		Bucket:    bucket,
		Signer:    storage.NewSigner(tokens, time.Minute, ""),
		Reports:   report.NewBuilder(mem, table),
	}

	if rateLimit == nil {
		rateLimit = &config.RateLimitConfig{}
	}
	srv := NewServer(&config.Config{}, ServerConfig{
		Version:        "test",
		MaxRequestSize: 1 << 16,
		MaxUploadSize:  1 << 20,
		PreviewLimit:   2,
		RateLimit:      rateLimit,
	}, deps, logger)
	t.Cleanup(func() {
		if srv.RateLimiter != nil {
			srv.RateLimiter.Close()
		}
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) upload(t *testing.T, path, token, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// login registers the test user and returns a session token.
func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	return ts.loginAs(t, testEmail)
}

// loginAs registers email with the test password and returns a session token.
func (ts *testServer) loginAs(t *testing.T, email string) string {
	t.Helper()
	creds := CredentialsRequest{Email: email, Password: testPassword}

	resp := ts.do(t, http.MethodPost, "/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[auth.Session](t, resp)
	require.NotEmpty(t, session.Token)
	return session.Token
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "keyword", body["parser_mode"])
}

func TestSessionRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/v1/profile", "/v1/rotations", "/v1/vault", "/v1/export"} {
		t.Run(path, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			resp = ts.do(t, http.MethodGet, path, "not-a-token", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestLoginFailureIsGeneric(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.login(t)

	wrongPassword := ts.do(t, http.MethodPost, "/v1/auth/login", "",
		CredentialsRequest{Email: testEmail, Password: "wrong password"})
	unknownUser := ts.do(t, http.MethodPost, "/v1/auth/login", "",
		CredentialsRequest{Email: "nobody@example.com", Password: testPassword})

	require.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	require.Equal(t, http.StatusUnauthorized, unknownUser.StatusCode)
	assert.Equal(t, decode[ErrorResponse](t, wrongPassword), decode[ErrorResponse](t, unknownUser))
}

func TestRegisterDuplicate(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.login(t)

	resp := ts.do(t, http.MethodPost, "/v1/auth/register", "",
		CredentialsRequest{Email: strings.ToUpper(testEmail), Password: testPassword})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogoutEndsSessionWithoutRevocationCache(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	resp := ts.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestProfileRoundTrip(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	resp := ts.do(t, http.MethodGet, "/v1/profile", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req := ProfileRequest{
		GlobalTier:        "Tier 2: Intermediate (SHO/Resident)",
		SelectedCountries: []string{"United Kingdom", "poland", "Poland"},
		Summary:           "Acute medicine",
	}
	resp = ts.do(t, http.MethodPut, "/v1/profile", token, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req.Summary = "Acute and respiratory medicine"
	resp = ts.do(t, http.MethodPut, "/v1/profile", token, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[map[string]any](t, resp)
	assert.Equal(t, testEmail, profile["user_email"])
	assert.Equal(t, "Acute and respiratory medicine", profile["summary"])
	assert.Len(t, profile["selected_countries"], 2)

	resp = ts.do(t, http.MethodPut, "/v1/profile", token, ProfileRequest{GlobalTier: "Tier 9"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRotationsAreScopedAndAppended(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	resp := ts.do(t, http.MethodPost, "/v1/rotations", token, map[string]any{
		"hospital":   "Royal London Hospital",
		"specialty":  "Cardiology",
		"dates":      "Aug 2023 - Dec 2023",
		"grade":      "FY1",
		"user_email": "someone.else@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	assert.Equal(t, testEmail, created["user_email"])
	assert.NotEmpty(t, created["id"])

	resp = ts.do(t, http.MethodGet, "/v1/rotations", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[map[string][]map[string]any](t, resp)
	require.Len(t, list["rotations"], 1)
	assert.Equal(t, "Royal London Hospital", list["rotations"][0]["hospital"])

	resp = ts.do(t, http.MethodPost, "/v1/rotations", token, map[string]any{"specialty": "Cardiology"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcedureAndProjectValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	resp := ts.do(t, http.MethodPost, "/v1/procedures", token, map[string]any{
		"procedure": "Lumbar puncture", "level": "Independent", "count": 3,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/v1/procedures", token, map[string]any{
		"procedure": "Lumbar puncture", "level": "Expert", "count": 3,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/v1/projects", token, map[string]any{
		"type": "Audit", "title": "Sepsis six compliance", "role": "Lead", "year": 2024,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/procedures", token, nil)
	assert.Len(t, decode[map[string][]any](t, resp)["procedures"], 1)
}

func TestRequestMustBeJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/rotations", strings.NewReader("hospital=x"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEquivalencyCompare(t *testing.T) {
	ts := newTestServer(t, nil)

	q := url.Values{}
	q.Set("tier", "Tier 1: Junior (Intern/FY1)")
	q.Add("countries", "United Kingdom,Poland")
	q.Add("countries", "Atlantis")
	resp := ts.do(t, http.MethodGet, "/v1/equivalency/compare?"+q.Encode(), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cmp := decode[equivalency.Comparison](t, resp)
	require.Len(t, cmp.Rows, 3)
	assert.Equal(t, "Foundation Year 1", cmp.Rows[0].Title)
	assert.Equal(t, "Lekarz stażysta", cmp.Rows[1].Title)
	assert.False(t, cmp.Rows[2].Mapped)
	assert.Equal(t, equivalency.NotMapped, cmp.Rows[2].Title)

	resp = ts.do(t, http.MethodGet, "/v1/equivalency", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[map[string]any](t, resp)["tiers"], 4)
}

func TestParseAndImportCV(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	cv := "Dr A Nowak\nRoyal London Hospital\nSt Thomas' Hospital\nCity Clinic\nGMC registration 1234567\n"
	resp := ts.upload(t, "/v1/cv/parse", token, "cv.txt", []byte(cv))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "keyword", body["mode"])
	assert.Equal(t, float64(3), body["total_rotations"])
	assert.Len(t, body["rotations"], 2)
	assert.NotContains(t, body, "text")

	resp = ts.do(t, http.MethodGet, "/v1/rotations", token, nil)
	assert.Empty(t, decode[map[string][]any](t, resp)["rotations"])

	resp = ts.do(t, http.MethodPost, "/v1/cv/import", token, map[string]any{
		"candidates": []map[string]string{
			{"hospital": "Royal London Hospital", "specialty": segment.DetectedSpecialty},
			{"hospital": "  "},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	imported := decode[map[string]any](t, resp)
	assert.Len(t, imported["imported"], 1)
	assert.Equal(t, float64(1), imported["skipped"])

	resp = ts.do(t, http.MethodGet, "/v1/rotations", token, nil)
	rows := decode[map[string][]map[string]any](t, resp)["rotations"]
	require.Len(t, rows, 1)
	assert.Equal(t, segment.DefaultSpecialty, rows[0]["specialty"])
	assert.Equal(t, segment.Imported, rows[0]["dates"])
}

func TestParseCVWithoutHospitalsReturnsText(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	cv := "Dr A Nowak\nInternal medicine 2019-2021\n"
	resp := ts.upload(t, "/v1/cv/parse", token, "cv.txt", []byte(cv))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, float64(0), body["total_rotations"])
	assert.Equal(t, strings.TrimSpace(cv), body["text"])
}

func TestParseCVRejectsBlankDocument(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	resp := ts.upload(t, "/v1/cv/parse", token, "cv.txt", []byte("   \n\n"))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "Unreadable document", body.Error)
	assert.Equal(t, "No text could be read from the document", body.Message)
}

func TestParseCVRejectsUnsupported(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	resp := ts.upload(t, "/v1/cv/parse", token, "photo.png", png)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestVaultUploadSignAndFetch(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	content := []byte("GMC certificate of good standing")
	resp := ts.upload(t, "/v1/vault", token, "good standing.txt", content)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	obj := decode[map[string]any](t, resp)
	name := obj["name"].(string)

	resp = ts.do(t, http.MethodGet, "/v1/vault", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[map[string][]any](t, resp)["files"], 1)

	resp = ts.do(t, http.MethodGet, "/v1/vault/"+url.PathEscape(name)+"/url", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	signed := decode[map[string]any](t, resp)
	assert.Equal(t, float64(60), signed["expires_in"])
	link := signed["url"].(string)
	assert.True(t, strings.HasPrefix(link, storage.ObjectPath+"?token="))

	resp = ts.do(t, http.MethodGet, link, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	resp = ts.do(t, http.MethodGet, storage.ObjectPath+"?token=forged", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/vault/missing.pdf/url", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVaultIsPrivateToLookalikeEmails(t *testing.T) {
	ts := newTestServer(t, nil)
	owner := ts.login(t)
	other := ts.loginAs(t, "dr_nowak@example.com")

	resp := ts.upload(t, "/v1/vault", owner, "diploma.pdf", []byte("%PDF-1.4\n"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/vault", other, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[map[string][]any](t, resp)["files"])

	resp = ts.do(t, http.MethodGet, "/v1/vault/diploma.pdf/url", other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/vault/diploma.pdf/url", owner, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionTokenIsNotAnObjectLink(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	resp := ts.do(t, http.MethodGet, storage.ObjectPath+"?token="+url.QueryEscape(token), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExport(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t)

	resp := ts.do(t, http.MethodGet, "/v1/export?format=pdf", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", decode[ErrorResponse](t, resp).Error)

	resp = ts.do(t, http.MethodPost, "/v1/rotations", token, map[string]any{
		"hospital": "Szpital Wojewódzki", "specialty": "Internal Medicine",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, report.FormatCSV.ContentType(), resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "medical-passport-")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Szpital Wojewódzki")

	resp = ts.do(t, http.MethodGet, "/v1/export?format=docx", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	ts := newTestServer(t, &config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 1,
		BurstCapacity:  2,
		ByIP:           true,
	})

	codes := make([]int, 0, 3)
	for range 3 {
		resp := ts.do(t, http.MethodGet, "/v1/equivalency", "", nil)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	resp := ts.do(t, http.MethodGet, "/stats", "", nil)
	stats := decode[map[string]any](t, resp)
	assert.Equal(t, true, stats["rate_limit_config"].(map[string]any)["enabled"])
}
