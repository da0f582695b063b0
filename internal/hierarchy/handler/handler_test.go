package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bonifica/internal/hierarchy/service"
	"bonifica/internal/hierarchy/store"
	"bonifica/pkg/domain"
	"bonifica/pkg/testutil"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	resolver := service.New(store.NewInMemory())
	h := New(resolver, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	router := chi.NewRouter()
	h.Register(router)
	return router
}

func doJSON(t *testing.T, router chi.Router, actor domain.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req = testutil.WithActor(req, actor)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerOrganizations(t *testing.T) {
	router := newRouter(t)
	admin := testutil.AdminActor()

	rec := doJSON(t, router, admin, http.MethodPost, "/organizations", map[string]any{
		"name":   "Acme Formación",
		"tax_id": "B12345678",
		"kind":   "reseller",
	})
	testutil.AssertStatus(t, rec, http.StatusCreated)
	var reseller struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reseller))
	assert.Equal(t, "reseller", reseller.Kind)

	resellerID, err := domain.ParseOrgID(reseller.ID)
	require.NoError(t, err)

	t.Run("creates a child under the reseller", func(t *testing.T) {
		rec := doJSON(t, router, testutil.ManagerActor(resellerID), http.MethodPost, "/organizations", map[string]any{
			"name":      "Taller Norte",
			"tax_id":    "B87654321",
			"kind":      "reseller_client",
			"parent_id": reseller.ID,
		})
		testutil.AssertStatus(t, rec, http.StatusCreated)
		testutil.AssertJSONContains(t, rec, "parent_id", reseller.ID)
	})

	t.Run("duplicate name maps to 409", func(t *testing.T) {
		rec := doJSON(t, router, admin, http.MethodPost, "/organizations", map[string]any{
			"name":   "acme formación",
			"tax_id": "B00000001",
			"kind":   "reseller",
		})
		testutil.AssertStatusAndError(t, rec, http.StatusConflict, "conflict")
	})

	t.Run("get outside the actor's subtree maps to 403", func(t *testing.T) {
		outsider := testutil.ManagerActor(domain.NewOrgID())
		rec := doJSON(t, router, outsider, http.MethodGet, "/organizations/"+reseller.ID, nil)
		testutil.AssertStatusAndError(t, rec, http.StatusForbidden, "permission_denied")
	})

	t.Run("list returns the managed subtree", func(t *testing.T) {
		rec := doJSON(t, router, testutil.ManagerActor(resellerID), http.MethodGet, "/organizations", nil)
		testutil.AssertStatus(t, rec, http.StatusOK)
		var resp struct {
			Organizations []json.RawMessage `json:"organizations"`
		}
		require.NoError(t, json.Unmarshal(testutil.ReadBody(t, rec), &resp))
		assert.Len(t, resp.Organizations, 2)
	})

	t.Run("rename", func(t *testing.T) {
		rec := doJSON(t, router, admin, http.MethodPatch, "/organizations/"+reseller.ID, map[string]any{
			"name": "Acme Formación SL",
		})
		testutil.AssertStatus(t, rec, http.StatusOK)
		testutil.AssertJSONContains(t, rec, "name", "Acme Formación SL")
	})

	t.Run("unknown organization maps to 404", func(t *testing.T) {
		rec := doJSON(t, router, admin, http.MethodGet, "/organizations/"+domain.NewOrgID().String(), nil)
		testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
	})

	t.Run("malformed id maps to 400", func(t *testing.T) {
		rec := doJSON(t, router, admin, http.MethodGet, "/organizations/not-a-uuid", nil)
		testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "invalid_input")
	})
}
