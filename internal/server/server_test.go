package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodrive/pkg/auth"
	"github.com/marmos91/dittodrive/pkg/config"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/resource"
	"github.com/marmos91/dittodrive/pkg/store"
	storememory "github.com/marmos91/dittodrive/pkg/store/memory"
	usermemory "github.com/marmos91/dittodrive/pkg/user/memory"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Address:         "127.0.0.1:0",
		ReadTimeout:     time.Minute,
		WriteTimeout:    time.Minute,
		ShutdownTimeout: 5 * time.Second,
		MaxUploadBytes:  8 << 20,
	}
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()

	return newTestServerWithGateway(t, cfg, storememory.NewMemoryGateway())
}

func newTestServerWithGateway(t *testing.T, cfg config.ServerConfig, gateway store.Gateway) *Server {
	t.Helper()

	files := drive.NewFileEngine(gateway)
	dirs := drive.NewDirectoryEngine(gateway, files)
	users := usermemory.NewMemoryUserStore()

	tokens, err := auth.NewTokenIssuer("unit-test-signing-secret", time.Hour)
	require.NoError(t, err)

	return New(cfg, files, dirs, users, tokens)
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func authedRequest(t *testing.T, s *Server, token, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

// signUpAndIn provisions an account and returns a valid session token.
func signUpAndIn(t *testing.T, s *Server, username string) string {
	t.Helper()

	creds := map[string]string{"username": username, "password": "hunter22"}

	rec := postJSON(t, s, "/api/auth/sign-up", creds)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, s, "/api/auth/sign-in", creds)
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Username string `json:"username"`
		Token    string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, username, response.Username)
	require.NotEmpty(t, response.Token)

	return response.Token
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func uploadFiles(t *testing.T, s *Server, token, dirPath string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/resource?path="+dirPath, body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func decodeDescriptors(t *testing.T, rec *httptest.ResponseRecorder) []resource.Descriptor {
	t.Helper()

	var descriptors []resource.Descriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &descriptors))

	return descriptors
}

func TestSignUpSignInAndMe(t *testing.T) {
	s := newTestServer(t, testServerConfig())

	token := signUpAndIn(t, s, "alice")

	rec := authedRequest(t, s, token, http.MethodGet, "/api/user/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
}

func TestSignUpValidation(t *testing.T) {
	s := newTestServer(t, testServerConfig())

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"blank username", map[string]string{"username": "  ", "password": "hunter22"}, http.StatusBadRequest},
		{"short password", map[string]string{"username": "bob", "password": "abc"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, s, "/api/auth/sign-up", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSignUpDuplicateUsername(t *testing.T) {
	s := newTestServer(t, testServerConfig())

	creds := map[string]string{"username": "alice", "password": "hunter22"}
	rec := postJSON(t, s, "/api/auth/sign-up", creds)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, s, "/api/auth/sign-up", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	signUpAndIn(t, s, "alice")

	rec := postJSON(t, s, "/api/auth/sign-in", map[string]string{"username": "alice", "password": "wrongpass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, s, "/api/auth/sign-in", map[string]string{"username": "nobody", "password": "hunter22"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, testServerConfig())

	targets := []string{
		"/api/user/me",
		"/api/resource?path=a.txt",
		"/api/directory?path=docs/",
	}

	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			req = httptest.NewRequest(http.MethodGet, target, nil)
			req.Header.Set("Authorization", "Bearer not-a-token")
			rec = httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestUploadAndDownloadFile(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "/", map[string]string{"notes.txt": "remember the milk"})
	require.Equal(t, http.StatusCreated, rec.Code)

	descriptors := decodeDescriptors(t, rec)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "notes.txt", descriptors[0].Name)
	assert.Equal(t, resource.KindFile, descriptors[0].Kind)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/download?path=notes.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "notes.txt")
	assert.Equal(t, "remember the milk", rec.Body.String())
}

func TestUploadRejectsFilePath(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "notes.txt", map[string]string{"a.txt": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadConflictReportsWrittenFiles(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "/", map[string]string{"a.txt": "first"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = uploadFiles(t, s, token, "/", map[string]string{"a.txt": "second"})
	require.Equal(t, http.StatusConflict, rec.Code)

	var result struct {
		Message  string                `json:"message"`
		Uploaded []resource.Descriptor `json:"uploaded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, result.Uploaded)

	// The original content survives the rejected overwrite.
	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/download?path=a.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first", rec.Body.String())
}

func TestUploadWithoutFiles(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "/", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResourceInfo(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "/", map[string]string{"report.pdf": "pdf bytes"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource?path=report.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var descriptor resource.Descriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &descriptor))
	assert.Equal(t, "report.pdf", descriptor.Name)
	assert.Equal(t, resource.KindFile, descriptor.Kind)
	require.NotNil(t, descriptor.Size)
	assert.Equal(t, int64(len("pdf bytes")), *descriptor.Size)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource?path=missing.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlankPathRejected(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := authedRequest(t, s, token, http.MethodGet, "/api/resource?path=", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteFile(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "/", map[string]string{"old.txt": "bye"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodDelete, "/api/resource?path=old.txt", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = authedRequest(t, s, token, http.MethodDelete, "/api/resource?path=old.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDirectoryLifecycle(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := authedRequest(t, s, token, http.MethodPost, "/api/directory?path=docs/", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var descriptor resource.Descriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &descriptor))
	assert.Equal(t, "docs", descriptor.Name)
	assert.Equal(t, resource.KindDirectory, descriptor.Kind)

	rec = authedRequest(t, s, token, http.MethodPost, "/api/directory?path=docs/", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = uploadFiles(t, s, token, "docs/", map[string]string{"a.txt": "alpha"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/directory?path=docs/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := decodeDescriptors(t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)

	rec = authedRequest(t, s, token, http.MethodDelete, "/api/resource?path=docs/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/directory?path=docs/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDirectoryCreateValidation(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	// A file-shaped path cannot denote a directory.
	rec := authedRequest(t, s, token, http.MethodPost, "/api/directory?path=docs", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Creating under a missing parent fails.
	rec = authedRequest(t, s, token, http.MethodPost, "/api/directory?path=missing/sub/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRename(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "/", map[string]string{"draft.txt": "v1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/rename?from=draft.txt&to=final.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var descriptor resource.Descriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &descriptor))
	assert.Equal(t, "final.txt", descriptor.Name)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/download?path=final.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Body.String())

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource?path=draft.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenameMixedKindsRejected(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "/", map[string]string{"a.txt": "x"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/rename?from=a.txt&to=a/", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = authedRequest(t, s, token, http.MethodPost, "/api/directory?path=docs/", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/rename?from=docs/&to=docs.txt", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMove(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := authedRequest(t, s, token, http.MethodPost, "/api/directory?path=archive/", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = uploadFiles(t, s, token, "/", map[string]string{"report.txt": "q3"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/move?from=report.txt&to=archive/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var descriptor resource.Descriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &descriptor))
	assert.Equal(t, "archive/", descriptor.Path)
	assert.Equal(t, "report.txt", descriptor.Name)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/download?path=archive/report.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "q3", rec.Body.String())
}

func TestMoveTargetMustBeDirectory(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "/", map[string]string{"a.txt": "x"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/move?from=a.txt&to=b.txt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := authedRequest(t, s, token, http.MethodPost, "/api/directory?path=docs/", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = uploadFiles(t, s, token, "/", map[string]string{"report.txt": "a", "summary.txt": "b"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = uploadFiles(t, s, token, "docs/", map[string]string{"reporting.csv": "c"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/search?query=report", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	matches := decodeDescriptors(t, rec)
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, match.Name)
	}
	assert.ElementsMatch(t, []string{"report.txt", "reporting.csv"}, names)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/search?query=", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchIsolatedPerUser(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	alice := signUpAndIn(t, s, "alice")
	bob := signUpAndIn(t, s, "bob")

	rec := uploadFiles(t, s, alice, "/", map[string]string{"secret.txt": "mine"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, bob, http.MethodGet, "/api/resource/search?query=secret", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeDescriptors(t, rec))

	rec = authedRequest(t, s, bob, http.MethodGet, "/api/resource?path=secret.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDirectoryDownloadZip(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := authedRequest(t, s, token, http.MethodPost, "/api/directory?path=docs/", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = uploadFiles(t, s, token, "docs/", map[string]string{"a.txt": "alpha"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/download?path=docs/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "docs.zip")

	reader, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)

	found := false
	for _, entry := range reader.File {
		if entry.Name != "a.txt" {
			continue
		}
		found = true
		rc, err := entry.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "alpha", string(content))
	}
	assert.True(t, found, "a.txt missing from archive")
}

func TestAbsolutePathsRejected(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := authedRequest(t, s, token, http.MethodGet, "/api/resource?path=%2Fetc%2Fpasswd", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiting(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}

	s := newTestServer(t, cfg)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	// The burst admits the first two requests (to the 401 from missing
	// auth); the third is turned away at the door.
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, statuses)
}

func TestExpiredTokenRejected(t *testing.T) {
	s := newTestServer(t, testServerConfig())

	expired, err := auth.NewTokenIssuer("unit-test-signing-secret", time.Nanosecond)
	require.NoError(t, err)

	token, err := expired.Issue(1, "alice")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	rec := authedRequest(t, s, token, http.MethodGet, "/api/user/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNestedDirectoryMove(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	for _, path := range []string{"src/", "src/lib/", "dst/"} {
		rec := authedRequest(t, s, token, http.MethodPost, "/api/directory?path="+path, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := uploadFiles(t, s, token, "src/lib/", map[string]string{"util.go": "package lib"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/move?from=src/&to=dst/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/download?path=dst/src/lib/util.go", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "package lib", rec.Body.String())

	rec = authedRequest(t, s, token, http.MethodGet, "/api/directory?path=src/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadBlankFilename(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="files"; filename="  "`}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("orphan"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/resource?path=/", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadPartialFailureLists(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := uploadFiles(t, s, token, "/", map[string]string{"b.txt": "existing"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Items are written in request order; a.txt lands before the clashing
	// b.txt aborts the batch.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(strings.ToUpper(name)))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/resource?path=/", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)

	var result struct {
		Message  string                `json:"message"`
		Uploaded []resource.Descriptor `json:"uploaded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Uploaded, 1)
	assert.Equal(t, "a.txt", result.Uploaded[0].Name)

	// c.txt never got written.
	check := authedRequest(t, s, token, http.MethodGet, "/api/resource?path=c.txt", nil)
	assert.Equal(t, http.StatusNotFound, check.Code)
}

// unreliableGateway delegates to a real gateway until armed, then fails
// Delete once its remaining budget is spent.
type unreliableGateway struct {
	store.Gateway
	armed       bool
	deletesLeft int
}

func (g *unreliableGateway) Delete(ctx context.Context, key string) error {
	if g.armed {
		if g.deletesLeft == 0 {
			return fmt.Errorf("%w: connection reset", store.ErrStoreUnavailable)
		}
		g.deletesLeft--
	}

	return g.Gateway.Delete(ctx, key)
}

func TestDirectoryDeletePartialFailureBody(t *testing.T) {
	gateway := &unreliableGateway{Gateway: storememory.NewMemoryGateway()}
	s := newTestServerWithGateway(t, testServerConfig(), gateway)
	token := signUpAndIn(t, s, "alice")

	rec := authedRequest(t, s, token, http.MethodPost, "/api/directory?path=docs/", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = uploadFiles(t, s, token, "docs/", map[string]string{"a.txt": "a"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = uploadFiles(t, s, token, "docs/", map[string]string{"b.txt": "b"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// The store goes down after one more delete: the marker goes, a.txt
	// fails. The response must say how far the operation got.
	gateway.armed = true
	gateway.deletesLeft = 1

	rec = authedRequest(t, s, token, http.MethodDelete, "/api/resource?path=docs/", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Message   string `json:"message"`
		Completed int    `json:"completed"`
		Total     int    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "object store unavailable", body.Message)
	assert.Equal(t, 1, body.Completed)
	assert.Equal(t, 3, body.Total)

	// The surviving files are still served.
	gateway.armed = false
	rec = authedRequest(t, s, token, http.MethodGet, "/api/resource/download?path=docs/a.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a", rec.Body.String())
}

func TestRootPathGuards(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	tests := []struct {
		name   string
		method string
		target string
	}{
		{"delete root", http.MethodDelete, "/api/resource?path=/"},
		{"rename root", http.MethodGet, "/api/resource/rename?from=/&to=stuff/"},
		{"rename onto root", http.MethodGet, "/api/resource/rename?from=stuff/&to=/"},
		{"move root", http.MethodGet, "/api/resource/move?from=/&to=dest/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := authedRequest(t, s, token, tt.method, tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// The root stays browsable and downloadable.
	rec := authedRequest(t, s, token, http.MethodGet, "/api/directory?path=/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHumanReadableErrors(t *testing.T) {
	s := newTestServer(t, testServerConfig())
	token := signUpAndIn(t, s, "alice")

	rec := authedRequest(t, s, token, http.MethodGet, "/api/resource?path=nope.txt", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "nope.txt")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
