package testutil

import (
	"net/http"

	"bonifica/pkg/domain"
	"bonifica/pkg/requestcontext"
)

// WithActor injects an actor into the request context, simulating what the
// auth middleware does for authenticated requests.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// AdminActor returns a platform admin actor.
func AdminActor() domain.Actor {
	return domain.Actor{Role: domain.RolePlatformAdmin}
}

// ManagerActor returns an org manager actor for the given organization.
func ManagerActor(orgID domain.OrgID) domain.Actor {
	return domain.Actor{Role: domain.RoleOrgManager, OrgID: orgID}
}
