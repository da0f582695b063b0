package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bonifica/internal/compliance"
	hierarchymodels "bonifica/internal/hierarchy/models"
	hierarchysvc "bonifica/internal/hierarchy/service"
	hierarchystore "bonifica/internal/hierarchy/store"
	ledgersvc "bonifica/internal/ledger/service"
	ledgerstore "bonifica/internal/ledger/store"
	trainingsvc "bonifica/internal/training/service"
	actionstore "bonifica/internal/training/store/action"
	groupstore "bonifica/internal/training/store/group"
	"bonifica/pkg/domain"
	"bonifica/pkg/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type handlerFixture struct {
	router   chi.Router
	reseller domain.OrgID
	client   domain.OrgID
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	ctx := context.Background()
	admin := testutil.AdminActor()

	orgs := hierarchystore.NewInMemory()
	resolver := hierarchysvc.New(orgs)
	actions := actionstore.NewInMemory()
	groups := groupstore.NewInMemory()
	allocator := trainingsvc.NewAllocator(resolver, actions, groups)
	ledger := ledgersvc.New(ledgerstore.NewInMemoryLinks(), ledgerstore.NewInMemoryCosts(), ledgerstore.NewInMemoryEntries())
	facade := compliance.New(resolver, allocator, ledger, actions, groups)

	reseller, err := resolver.CreateOrganization(ctx, admin, "Reseller", "B1", hierarchymodels.OrgKindReseller, nil)
	require.NoError(t, err)
	client, err := resolver.CreateOrganization(ctx, admin, "Client", "B2", hierarchymodels.OrgKindResellerClient, &reseller.ID)
	require.NoError(t, err)

	router := chi.NewRouter()
	h := New(facade, testLogger(), nil)
	h.Register(router)

	return &handlerFixture{
		router:   router,
		reseller: reseller.ID,
		client:   client.ID,
	}
}

func (f *handlerFixture) do(t *testing.T, actor domain.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req = testutil.WithActor(req, actor)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) createAction(t *testing.T, code string) string {
	t.Helper()
	rec := f.do(t, testutil.ManagerActor(f.client), http.MethodPost, "/training-actions", map[string]any{
		"owner_org_id": f.client.String(),
		"code":         code,
		"title":        "Workplace Safety",
		"modality":     "remote",
		"hours":        40,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.ID
}

func TestHandlerCreateTrainingAction(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("creates and returns the action", func(t *testing.T) {
		rec := f.do(t, testutil.ManagerActor(f.client), http.MethodPost, "/training-actions", map[string]any{
			"owner_org_id": f.client.String(),
			"code":         "AF-01",
			"title":        "Workplace Safety",
			"modality":     "remote",
			"hours":        40,
		})
		testutil.AssertStatus(t, rec, http.StatusCreated)
		testutil.AssertJSONContains(t, rec, "responsible_org_id", f.reseller.String())
	})

	t.Run("duplicate code maps to 409", func(t *testing.T) {
		rec := f.do(t, testutil.ManagerActor(f.client), http.MethodPost, "/training-actions", map[string]any{
			"owner_org_id": f.client.String(),
			"code":         "AF-01",
			"title":        "Second Attempt",
			"modality":     "remote",
			"hours":        20,
		})
		testutil.AssertStatusAndError(t, rec, http.StatusConflict, "duplicate_code")
	})

	t.Run("foreign organization maps to 403", func(t *testing.T) {
		outsider := testutil.ManagerActor(domain.NewOrgID())
		rec := f.do(t, outsider, http.MethodPost, "/training-actions", map[string]any{
			"owner_org_id": f.client.String(),
			"code":         "AF-02",
			"title":        "Not Mine",
			"modality":     "remote",
			"hours":        20,
		})
		testutil.AssertStatusAndError(t, rec, http.StatusForbidden, "permission_denied")
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/training-actions", "{not json")
		req = testutil.WithActor(req, testutil.ManagerActor(f.client))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestHandlerGroups(t *testing.T) {
	f := newHandlerFixture(t)
	actionID := f.createAction(t, "AF-10")
	manager := testutil.ManagerActor(f.client)

	t.Run("auto-assigns a code when none is sent", func(t *testing.T) {
		rec := f.do(t, manager, http.MethodPost, "/groups", map[string]any{
			"training_action_id": actionID,
			"start_date":         "2025-03-01",
			"planned_end_date":   "2025-05-01",
		})
		testutil.AssertStatus(t, rec, http.StatusCreated)
		testutil.AssertJSONContains(t, rec, "sequential_code", "1")
	})

	t.Run("suggest endpoint returns the next free code", func(t *testing.T) {
		rec := f.do(t, manager, http.MethodGet,
			"/training-actions/"+actionID+"/suggest-group-code?start_date=2025-03-01", nil)
		testutil.AssertStatus(t, rec, http.StatusOK)
		testutil.AssertJSONContains(t, rec, "code", "2")
	})

	t.Run("incoherent dates map to 400 with violations", func(t *testing.T) {
		rec := f.do(t, manager, http.MethodPost, "/groups", map[string]any{
			"training_action_id": actionID,
			"start_date":         "2025-03-01",
			"planned_end_date":   "2025-02-01",
		})
		testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "validation")

		var resp struct {
			Details struct {
				Violations []map[string]string `json:"violations"`
			} `json:"details"`
		}
		require.NoError(t, json.Unmarshal(testutil.ReadBody(t, rec), &resp))
		require.Len(t, resp.Details.Violations, 1)
		assert.Equal(t, "planned_end_not_after_start", resp.Details.Violations[0]["rule"])
	})

	t.Run("bad date format maps to 400", func(t *testing.T) {
		rec := f.do(t, manager, http.MethodPost, "/groups", map[string]any{
			"training_action_id": actionID,
			"start_date":         "01/03/2025",
			"planned_end_date":   "2025-05-01",
		})
		testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "invalid_input")
	})
}

func TestHandlerLedger(t *testing.T) {
	f := newHandlerFixture(t)
	actionID := f.createAction(t, "AF-20")
	manager := testutil.ManagerActor(f.client)

	rec := f.do(t, manager, http.MethodPost, "/groups", map[string]any{
		"training_action_id": actionID,
		"start_date":         "2025-03-01",
		"planned_end_date":   "2025-05-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var group struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&group))

	rec = f.do(t, manager, http.MethodPost, "/links", map[string]any{
		"group_id": group.ID,
		"org_id":   f.client.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var link struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))

	t.Run("subsidy before cost declaration maps to 422", func(t *testing.T) {
		rec := f.do(t, manager, http.MethodPost, "/links/"+link.ID+"/subsidies", map[string]any{
			"month":        1,
			"amount_cents": 10000,
		})
		testutil.AssertStatusAndError(t, rec, http.StatusUnprocessableEntity, "no_cost_declared")
	})

	t.Run("cost then subsidy then balance", func(t *testing.T) {
		rec := f.do(t, manager, http.MethodPost, "/links/"+link.ID+"/cost", map[string]any{
			"total_cents": 100000,
		})
		testutil.AssertStatus(t, rec, http.StatusOK)

		rec = f.do(t, manager, http.MethodPost, "/links/"+link.ID+"/subsidies", map[string]any{
			"month":        1,
			"amount_cents": 60000,
		})
		testutil.AssertStatus(t, rec, http.StatusCreated)

		rec = f.do(t, manager, http.MethodPost, "/links/"+link.ID+"/subsidies", map[string]any{
			"month":        2,
			"amount_cents": 50000,
		})
		testutil.AssertStatusAndError(t, rec, http.StatusUnprocessableEntity, "budget_exceeded")

		rec = f.do(t, manager, http.MethodGet, "/links/"+link.ID+"/balance", nil)
		testutil.AssertStatus(t, rec, http.StatusOK)
		testutil.AssertJSONContains(t, rec, "total_allocated", float64(60000))
	})

	t.Run("duplicate month maps to 409", func(t *testing.T) {
		rec := f.do(t, manager, http.MethodPost, "/links/"+link.ID+"/subsidies", map[string]any{
			"month":        1,
			"amount_cents": 1000,
		})
		testutil.AssertStatusAndError(t, rec, http.StatusConflict, "month_already_allocated")
	})
}
