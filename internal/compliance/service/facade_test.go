package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"bonifica/internal/audit"
	"bonifica/internal/audit/mocks"
	hierarchymodels "bonifica/internal/hierarchy/models"
	hierarchysvc "bonifica/internal/hierarchy/service"
	hierarchystore "bonifica/internal/hierarchy/store"
	ledgersvc "bonifica/internal/ledger/service"
	ledgerstore "bonifica/internal/ledger/store"
	trainingmodels "bonifica/internal/training/models"
	trainingsvc "bonifica/internal/training/service"
	actionstore "bonifica/internal/training/store/action"
	groupstore "bonifica/internal/training/store/group"
	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
	"bonifica/pkg/platform/sentinel"
)

// conflictingGroupStore injects storage conflicts on the first N creates to
// simulate concurrent writers losing the race for a code.
type conflictingGroupStore struct {
	*groupstore.InMemory
	conflicts int
}

func (s *conflictingGroupStore) Create(ctx context.Context, group *trainingmodels.DeliveryGroup) error {
	if s.conflicts > 0 {
		s.conflicts--
		return sentinel.ErrConflict
	}
	return s.InMemory.Create(ctx, group)
}

type facadeFixture struct {
	facade    *Facade
	resolver  *hierarchysvc.Resolver
	groups    *conflictingGroupStore
	actions   *actionstore.InMemory
	ledger    *ledgersvc.Service
	publisher *mocks.MockPublisher

	reseller domain.OrgID
	client   domain.OrgID
	outsider domain.OrgID
}

func newFacadeFixture(t *testing.T) *facadeFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	admin := domain.Actor{Role: domain.RolePlatformAdmin}

	orgs := hierarchystore.NewInMemory()
	resolver := hierarchysvc.New(orgs)

	f := &facadeFixture{
		resolver:  resolver,
		groups:    &conflictingGroupStore{InMemory: groupstore.NewInMemory()},
		actions:   actionstore.NewInMemory(),
		publisher: mocks.NewMockPublisher(ctrl),
	}

	reseller, err := resolver.CreateOrganization(ctx, admin, "Reseller", "B00000001", hierarchymodels.OrgKindReseller, nil)
	require.NoError(t, err)
	f.reseller = reseller.ID

	client, err := resolver.CreateOrganization(ctx, admin, "Client", "B00000002", hierarchymodels.OrgKindResellerClient, &f.reseller)
	require.NoError(t, err)
	f.client = client.ID

	outsider, err := resolver.CreateOrganization(ctx, admin, "Outsider", "B00000003", hierarchymodels.OrgKindDirectClient, nil)
	require.NoError(t, err)
	f.outsider = outsider.ID

	allocator := trainingsvc.NewAllocator(resolver, f.actions, f.groups)
	f.ledger = ledgersvc.New(ledgerstore.NewInMemoryLinks(), ledgerstore.NewInMemoryCosts(), ledgerstore.NewInMemoryEntries())
	f.facade = New(resolver, allocator, f.ledger, f.actions, f.groups,
		WithAuditPublisher(f.publisher),
	)
	return f
}

func (f *facadeFixture) expectAudit(action audit.Action) {
	f.publisher.EXPECT().
		Emit(gomock.Any(), gomock.Cond(func(e audit.Event) bool { return e.Action == action })).
		Return(nil)
}

func (f *facadeFixture) actionRequest(code string) CreateActionRequest {
	return CreateActionRequest{
		OwnerOrgID: f.client,
		Code:       code,
		Title:      "Workplace Safety",
		Modality:   trainingmodels.ModalityRemote,
		Hours:      40,
	}
}

func (f *facadeFixture) groupRequest(actionID domain.ActionID, code string) SaveGroupRequest {
	return SaveGroupRequest{
		TrainingActionID: actionID,
		Code:             code,
		StartDate:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		PlannedEndDate:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *facadeFixture) createAction(t *testing.T, code string) *trainingmodels.TrainingAction {
	t.Helper()
	f.expectAudit(audit.ActionTrainingActionSaved)
	manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}
	action, err := f.facade.CreateTrainingAction(context.Background(), manager, f.actionRequest(code))
	require.NoError(t, err)
	return action
}

func TestFacadeCreateTrainingAction(t *testing.T) {
	ctx := context.Background()

	t.Run("persists with the responsible organization resolved", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		assert.Equal(t, f.client, action.OwnerOrgID)
		assert.Equal(t, f.reseller, action.ResponsibleOrgID)
	})

	t.Run("outside the actor's scope nothing is written", func(t *testing.T) {
		f := newFacadeFixture(t)
		outsiderManager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.outsider}

		_, err := f.facade.CreateTrainingAction(ctx, outsiderManager, f.actionRequest("AF-01"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePermissionDenied))

		_, err = f.actions.FindByID(ctx, domain.ActionID{})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("duplicate code in the reseller catalog is rejected", func(t *testing.T) {
		f := newFacadeFixture(t)
		f.createAction(t, "AF-01")

		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}
		_, err := f.facade.CreateTrainingAction(ctx, manager, f.actionRequest("AF-01"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateCode))
		assert.Equal(t, f.reseller.String(), dErrors.DetailsOf(err)["organization_id"])
	})

	t.Run("audit failures do not abort the operation", func(t *testing.T) {
		f := newFacadeFixture(t)
		f.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}
		_, err := f.facade.CreateTrainingAction(ctx, manager, f.actionRequest("AF-01"))
		assert.NoError(t, err)
	})
}

func TestFacadeCreateGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("auto-assigns first-fit codes", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		f.expectAudit(audit.ActionGroupCreated)
		first, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, ""))
		require.NoError(t, err)
		assert.Equal(t, "1", first.SequentialCode)
		assert.Equal(t, 2025, first.CodeYear)
		assert.Equal(t, f.reseller, first.ResponsibleOrgID)

		f.expectAudit(audit.ActionGroupCreated)
		second, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, ""))
		require.NoError(t, err)
		assert.Equal(t, "2", second.SequentialCode)
	})

	t.Run("date violations abort with every broken rule attached", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		req := f.groupRequest(action.ID, "")
		req.PlannedEndDate = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

		_, err := f.facade.CreateGroup(ctx, manager, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		violations, ok := dErrors.DetailsOf(err)["violations"].([]trainingmodels.Violation)
		require.True(t, ok)
		require.Len(t, violations, 1)
		assert.Equal(t, trainingmodels.ViolationEndNotAfterStart, violations[0].Rule)
	})

	t.Run("submitter-chosen duplicate code is surfaced, not retried", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		f.expectAudit(audit.ActionGroupCreated)
		_, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, "7"))
		require.NoError(t, err)

		_, err = f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, "7"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateCode))
		assert.Equal(t, 2025, dErrors.DetailsOf(err)["year"])
	})

	t.Run("non-numeric chosen code is a format error", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		_, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, "G-1"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCodeFormat))
	})

	t.Run("auto-assigned code conflict is retried", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}
		f.groups.conflicts = 2

		f.expectAudit(audit.ActionGroupCreated)
		group, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, ""))
		require.NoError(t, err)
		assert.Equal(t, "1", group.SequentialCode)
	})

	t.Run("persistent conflicts stop after the retry bound", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}
		f.groups.conflicts = maxCodeAllocationAttempts

		_, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, ""))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStorageConflict))
	})
}

func TestFacadeUpdateGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("edits keep the group's own code", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		f.expectAudit(audit.ActionGroupCreated)
		group, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, "3"))
		require.NoError(t, err)

		req := f.groupRequest(action.ID, "3")
		req.PlannedEndDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

		f.expectAudit(audit.ActionGroupUpdated)
		updated, err := f.facade.UpdateGroup(ctx, manager, group.ID, req)
		require.NoError(t, err)
		assert.Equal(t, "3", updated.SequentialCode)
		assert.Equal(t, req.PlannedEndDate, updated.PlannedEndDate)
	})

	t.Run("a group cannot move to another training action", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		other := f.createAction(t, "AF-02")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		f.expectAudit(audit.ActionGroupCreated)
		group, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, "1"))
		require.NoError(t, err)

		_, err = f.facade.UpdateGroup(ctx, manager, group.ID, f.groupRequest(other.ID, "1"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("the property organization cannot change", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		f.expectAudit(audit.ActionGroupCreated)
		group, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, "1"))
		require.NoError(t, err)

		req := f.groupRequest(action.ID, "1")
		req.PropertyOrgID = &f.client

		_, err = f.facade.UpdateGroup(ctx, manager, group.ID, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("closing requires reconciled counts", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		f.expectAudit(audit.ActionGroupCreated)
		group, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, "1"))
		require.NoError(t, err)

		req := f.groupRequest(action.ID, "1")
		actualEnd := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
		req.ActualEndDate = &actualEnd
		req.ParticipantCountFinished = 10
		req.PassedCount = 6
		req.FailedCount = 3

		_, err = f.facade.UpdateGroup(ctx, manager, group.ID, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		req.FailedCount = 4
		f.expectAudit(audit.ActionGroupUpdated)
		updated, err := f.facade.UpdateGroup(ctx, manager, group.ID, req)
		require.NoError(t, err)
		assert.True(t, updated.IsClosed())
	})
}

func TestFacadeLedgerFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("record and delete a subsidy entry through the facade", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		f.expectAudit(audit.ActionGroupCreated)
		group, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, ""))
		require.NoError(t, err)

		link, err := f.facade.CreateLink(ctx, manager, group.ID, f.client)
		require.NoError(t, err)

		f.expectAudit(audit.ActionCostDeclared)
		_, err = f.facade.DeclareCost(ctx, manager, link.ID, domain.Money(100000))
		require.NoError(t, err)

		f.expectAudit(audit.ActionSubsidyRecorded)
		entry, err := f.facade.RecordSubsidyEntry(ctx, manager, RecordEntryRequest{
			LinkID: link.ID, Month: time.January, Amount: domain.Money(40000),
		})
		require.NoError(t, err)

		balance, err := f.facade.LinkBalance(ctx, manager, link.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(60000), balance.Remaining)

		f.expectAudit(audit.ActionSubsidyDeleted)
		require.NoError(t, f.facade.DeleteSubsidyEntry(ctx, manager, entry.ID))

		balance, err = f.facade.LinkBalance(ctx, manager, link.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(100000), balance.Remaining)
	})

	t.Run("actors outside the link's organization are denied", func(t *testing.T) {
		f := newFacadeFixture(t)
		action := f.createAction(t, "AF-01")
		manager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.client}

		f.expectAudit(audit.ActionGroupCreated)
		group, err := f.facade.CreateGroup(ctx, manager, f.groupRequest(action.ID, ""))
		require.NoError(t, err)

		link, err := f.facade.CreateLink(ctx, manager, group.ID, f.client)
		require.NoError(t, err)

		outsiderManager := domain.Actor{Role: domain.RoleOrgManager, OrgID: f.outsider}
		_, err = f.facade.DeclareCost(ctx, outsiderManager, link.ID, domain.Money(100000))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePermissionDenied))

		_, err = f.facade.RecordSubsidyEntry(ctx, outsiderManager, RecordEntryRequest{
			LinkID: link.ID, Month: time.January, Amount: domain.Money(1),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePermissionDenied))
	})
}
