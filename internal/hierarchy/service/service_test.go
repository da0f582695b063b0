package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bonifica/internal/hierarchy/models"
	"bonifica/internal/hierarchy/store"
	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
)

type fixture struct {
	resolver *Resolver
	store    *store.InMemory

	resellerA domain.OrgID
	resellerB domain.OrgID
	clientA1  domain.OrgID
	clientA2  domain.OrgID
	clientB1  domain.OrgID
	direct    domain.OrgID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewInMemory()
	resolver := New(st)
	ctx := context.Background()
	admin := domain.Actor{Role: domain.RolePlatformAdmin}

	f := &fixture{resolver: resolver, store: st}

	resellerA, err := resolver.CreateOrganization(ctx, admin, "Reseller A", "B00000001", models.OrgKindReseller, nil)
	require.NoError(t, err)
	f.resellerA = resellerA.ID

	resellerB, err := resolver.CreateOrganization(ctx, admin, "Reseller B", "B00000002", models.OrgKindReseller, nil)
	require.NoError(t, err)
	f.resellerB = resellerB.ID

	clientA1, err := resolver.CreateOrganization(ctx, admin, "Client A1", "B00000003", models.OrgKindResellerClient, &f.resellerA)
	require.NoError(t, err)
	f.clientA1 = clientA1.ID

	clientA2, err := resolver.CreateOrganization(ctx, admin, "Client A2", "B00000004", models.OrgKindResellerClient, &f.resellerA)
	require.NoError(t, err)
	f.clientA2 = clientA2.ID

	clientB1, err := resolver.CreateOrganization(ctx, admin, "Client B1", "B00000005", models.OrgKindResellerClient, &f.resellerB)
	require.NoError(t, err)
	f.clientB1 = clientB1.ID

	direct, err := resolver.CreateOrganization(ctx, admin, "Direct Client", "B00000006", models.OrgKindDirectClient, nil)
	require.NoError(t, err)
	f.direct = direct.ID

	return f
}

func TestResolveScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("admin sees every organization", func(t *testing.T) {
		scope, err := f.resolver.ResolveScope(ctx, domain.Actor{Role: domain.RolePlatformAdmin})
		require.NoError(t, err)
		assert.Len(t, scope, 6)
	})

	t.Run("reseller manager sees itself plus its clients only", func(t *testing.T) {
		scope, err := f.resolver.ResolveScope(ctx, domain.Actor{Role: domain.RoleOrgManager, OrgID: f.resellerA})
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.OrgID{f.resellerA, f.clientA1, f.clientA2}, scope)
	})

	t.Run("reseller client manager sees only itself", func(t *testing.T) {
		scope, err := f.resolver.ResolveScope(ctx, domain.Actor{Role: domain.RoleOrgManager, OrgID: f.clientA1})
		require.NoError(t, err)
		assert.Equal(t, []domain.OrgID{f.clientA1}, scope)
	})

	t.Run("participant resolves to the empty set", func(t *testing.T) {
		scope, err := f.resolver.ResolveScope(ctx, domain.Actor{Role: domain.RoleParticipant, OrgID: f.clientA1})
		require.NoError(t, err)
		assert.Empty(t, scope)
	})
}

func TestCanAct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	managerA := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.resellerA}

	t.Run("manager acts on own client", func(t *testing.T) {
		ok, err := f.resolver.CanAct(ctx, managerA, f.clientA1)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("manager cannot act on sibling reseller's client", func(t *testing.T) {
		ok, err := f.resolver.CanAct(ctx, managerA, f.clientB1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("client manager cannot act on its parent", func(t *testing.T) {
		ok, err := f.resolver.CanAct(ctx, domain.Actor{Role: domain.RoleOrgManager, OrgID: f.clientA1}, f.resellerA)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("denial carries the target organization", func(t *testing.T) {
		err := f.resolver.RequireAct(ctx, managerA, f.clientB1)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePermissionDenied))
		assert.Equal(t, f.clientB1.String(), dErrors.DetailsOf(err)["organization_id"])
	})
}

func TestResponsibleOrg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("reseller is responsible for itself", func(t *testing.T) {
		responsible, err := f.resolver.ResponsibleOrg(ctx, f.resellerA, nil)
		require.NoError(t, err)
		assert.Equal(t, f.resellerA, responsible)
	})

	t.Run("reseller client resolves to its parent", func(t *testing.T) {
		responsible, err := f.resolver.ResponsibleOrg(ctx, f.clientA1, nil)
		require.NoError(t, err)
		assert.Equal(t, f.resellerA, responsible)
	})

	t.Run("direct client with resolvable property resolves to the property org", func(t *testing.T) {
		responsible, err := f.resolver.ResponsibleOrg(ctx, f.direct, &f.resellerB)
		require.NoError(t, err)
		assert.Equal(t, f.resellerB, responsible)
	})

	t.Run("direct client with unresolvable property falls back to itself", func(t *testing.T) {
		ghost := domain.NewOrgID()
		responsible, err := f.resolver.ResponsibleOrg(ctx, f.direct, &ghost)
		require.NoError(t, err)
		assert.Equal(t, f.direct, responsible)
	})

	t.Run("dangling parent is a data integrity error", func(t *testing.T) {
		orphan, err := models.NewOrganization(domain.NewOrgID(), "Orphan", "", models.OrgKindResellerClient, &f.resellerA, time.Now())
		require.NoError(t, err)
		ghost := domain.NewOrgID()
		orphan.ParentID = &ghost
		require.NoError(t, f.store.Create(ctx, orphan))

		_, err = f.resolver.ResponsibleOrg(ctx, orphan.ID, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOrphanedResellerClient))
	})
}

func TestCreateOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	managerA := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.resellerA}

	t.Run("reseller manager creates a client under itself", func(t *testing.T) {
		org, err := f.resolver.CreateOrganization(ctx, managerA, "New Client", "B10000001", models.OrgKindResellerClient, &f.resellerA)
		require.NoError(t, err)
		assert.Equal(t, models.OrgKindResellerClient, org.Kind)
		assert.Equal(t, f.resellerA, *org.ParentID)
	})

	t.Run("reseller manager cannot create under another reseller", func(t *testing.T) {
		_, err := f.resolver.CreateOrganization(ctx, managerA, "Foreign Client", "B10000002", models.OrgKindResellerClient, &f.resellerB)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePermissionDenied))
	})

	t.Run("reseller manager cannot create resellers", func(t *testing.T) {
		_, err := f.resolver.CreateOrganization(ctx, managerA, "Another Reseller", "B10000003", models.OrgKindReseller, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePermissionDenied))
	})

	t.Run("parent must be a reseller", func(t *testing.T) {
		admin := domain.Actor{Role: domain.RolePlatformAdmin}
		_, err := f.resolver.CreateOrganization(ctx, admin, "Nested Client", "B10000004", models.OrgKindResellerClient, &f.clientA1)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("duplicate name conflicts case-insensitively", func(t *testing.T) {
		admin := domain.Actor{Role: domain.RolePlatformAdmin}
		_, err := f.resolver.CreateOrganization(ctx, admin, "RESELLER a", "B10000005", models.OrgKindReseller, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestUpdateOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := domain.Actor{Role: domain.RolePlatformAdmin}

	t.Run("renames within scope", func(t *testing.T) {
		name := "Reseller A Renamed"
		org, err := f.resolver.UpdateOrganization(ctx, admin, f.resellerA, &name, nil)
		require.NoError(t, err)
		assert.Equal(t, name, org.Name)
	})

	t.Run("rejects rename to an existing name", func(t *testing.T) {
		name := "Reseller B"
		_, err := f.resolver.UpdateOrganization(ctx, admin, f.resellerA, &name, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("outside scope is denied", func(t *testing.T) {
		name := "Hijacked"
		managerA := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.resellerA}
		_, err := f.resolver.UpdateOrganization(ctx, managerA, f.resellerB, &name, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePermissionDenied))
	})
}
