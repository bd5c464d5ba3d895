package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/docstate/internal/coalesce"
	"github.com/kalambet/docstate/internal/configfile"
	"github.com/kalambet/docstate/internal/documents"
	"github.com/kalambet/docstate/internal/paths"
)

func newTestSet(t *testing.T, opts documents.Options) *documents.Set {
	t.Helper()
	root := t.TempDir()
	dirs := paths.Dirs{
		ConfigDir: filepath.Join(root, "config"),
		DataDir:   filepath.Join(root, "data"),
	}
	opts.DocumentOptions = append(opts.DocumentOptions,
		configfile.WithCoalesceOptions(coalesce.WithInterval(time.Hour)))
	set := documents.Open(dirs, opts)
	t.Cleanup(func() { set.Close(context.Background()) })
	return set
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	h := NewHandler(newTestSet(t, documents.Options{}), "")

	rr := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestListDocuments(t *testing.T) {
	set := newTestSet(t, documents.Options{})
	h := NewHandler(set, "")

	rr := serve(h, http.MethodGet, "/documents", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Documents []DocumentInfo `json:"documents"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Documents, 4)
	assert.Equal(t, "accounts", body.Documents[0].Name)
	assert.Equal(t, set.Settings.Path(), body.Documents[1].Path)
	assert.False(t, body.Documents[1].Exists)
}

func TestGetDocumentReconciled(t *testing.T) {
	h := NewHandler(newTestSet(t, documents.Options{}), "")

	rr := serve(h, http.MethodGet, "/documents/state", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"collapseAccounts":{},"page":"Pages/Default.qml","pageProperties":{}}`, rr.Body.String())

	rr = serve(h, http.MethodGet, "/documents/settings?path=media.autoLoad", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `true`, rr.Body.String())

	rr = serve(h, http.MethodGet, "/documents/settings?path=no.such.key", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUnknownDocument(t *testing.T) {
	h := NewHandler(newTestSet(t, documents.Options{}), "")

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch} {
		rr := serve(h, method, "/documents/nope", `{}`)
		assert.Equal(t, http.StatusNotFound, rr.Code, method)
		assert.Contains(t, rr.Body.String(), "not_found")
	}
}

func TestPutDocument(t *testing.T) {
	set := newTestSet(t, documents.Options{})
	h := NewHandler(set, "")

	rr := serve(h, http.MethodPut, "/documents/state", `{"page": "Pages/Room.qml"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	got := set.State.Read()
	assert.Equal(t, "Pages/Room.qml", got["page"])
	assert.Equal(t, map[string]any{}, got["pageProperties"])

	for _, bad := range []string{`[1,2]`, `null`, `{`} {
		rr = serve(h, http.MethodPut, "/documents/state", bad)
		assert.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}
}

func TestPatchDocument(t *testing.T) {
	set := newTestSet(t, documents.Options{})
	h := NewHandler(set, "")

	rr := serve(h, http.MethodPatch, "/documents/settings", `{"path": "media.defaultVolume", "value": 25}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	v, ok := set.Settings.Get("media.defaultVolume")
	require.True(t, ok)
	assert.Equal(t, json.Number("25"), v)

	rr = serve(h, http.MethodPatch, "/documents/state", `{"path": "pageProperties.eventTs", "value": 9007199254740993}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	v, ok = set.State.Get("pageProperties.eventTs")
	require.True(t, ok)
	assert.Equal(t, json.Number("9007199254740993"), v)

	rr = serve(h, http.MethodPatch, "/documents/settings", `{"value": 1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFlush(t *testing.T) {
	set := newTestSet(t, documents.Options{})
	h := NewHandler(set, "")

	require.NoError(t, set.State.Set("page", "Pages/Flushed.qml"))
	_, err := os.Stat(set.State.Path())
	require.True(t, os.IsNotExist(err))

	rr := serve(h, http.MethodPost, "/flush", "")
	require.Equal(t, http.StatusOK, rr.Code)

	data, err := os.ReadFile(set.State.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Pages/Flushed.qml")
}

func TestListAccountsHidesTokens(t *testing.T) {
	alice := documents.Session{
		UserID:      "@alice:example.org",
		Homeserver:  "https://matrix.example.org",
		AccessToken: "syt_secret",
		DeviceID:    "DEV",
	}
	set := newTestSet(t, documents.Options{Clients: documents.StaticSessions{alice.UserID: alice}})
	require.NoError(t, set.Accounts.Add(alice.UserID))

	rr := serve(NewHandler(set, ""), http.MethodGet, "/accounts", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"accounts":[{"user_id":"@alice:example.org","homeserver":"https://matrix.example.org","device_id":"DEV"}]}`, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "syt_secret")
}

func TestGetTheme(t *testing.T) {
	set := newTestSet(t, documents.Options{Converter: strings.ToUpper})
	h := NewHandler(set, "")

	rr := serve(h, http.MethodGet, "/themes/"+documents.DefaultThemeName, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, strings.ToUpper(rr.Body.String()), rr.Body.String())
	assert.NotEmpty(t, rr.Body.String())

	rr = serve(h, http.MethodGet, "/themes/..", "")
	assert.NotEqual(t, http.StatusOK, rr.Code)
}

func TestBearerAuth(t *testing.T) {
	h := NewHandler(newTestSet(t, documents.Options{}), "s3cret")

	rr := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code, "health is public")

	rr = serve(h, http.MethodGet, "/documents", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "authentication_error")

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	ok := httptest.NewRecorder()
	h.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)
}
