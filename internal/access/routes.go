package access

import "github.com/curaious/teamboard/internal/services/membership"

// RouteID names an API operation for authorization purposes.
type RouteID string

const (
	RouteProjectCreate      RouteID = "project.create"
	RouteProjectList        RouteID = "project.list"
	RouteProjectGet         RouteID = "project.get"
	RouteProjectUpdate      RouteID = "project.update"
	RouteProjectDelete      RouteID = "project.delete"
	RouteProjectActivity    RouteID = "project.activity"
	RouteProjectTasksCreate RouteID = "project.tasks.create"
	RouteProjectTasksList   RouteID = "project.tasks.list"
	RouteProjectTasksGroup  RouteID = "project.tasks.grouped"
	RouteProjectInvite      RouteID = "project.invite"
	RouteProjectUsersList   RouteID = "project.users.list"
	RouteProjectUsersRemove RouteID = "project.users.remove"
	RouteProjectUsersRole   RouteID = "project.users.role"
	RouteProjectInvitations RouteID = "project.invitations.list"
	RouteProjectSubscribe   RouteID = "project.subscribe"
	RouteInvitationRevoke   RouteID = "invitation.revoke"
	RouteInvitationGet      RouteID = "invitation.get"
	RouteInvitationRespond  RouteID = "invitation.respond"
	RouteTaskGet            RouteID = "task.get"
	RouteTaskUpdate         RouteID = "task.update"
	RouteTaskDelete         RouteID = "task.delete"
	RouteTaskStatus         RouteID = "task.status"
	RouteTaskPriority       RouteID = "task.priority"
	RouteTaskAssign         RouteID = "task.assign"
	RouteTaskArchive        RouteID = "task.archive"
)

// RouteTable maps a route to the roles that may call it. A route with no roles only needs an
// authenticated caller.
type RouteTable map[RouteID][]membership.Role

var (
	ownerOnly    = []membership.Role{membership.RoleOwner}
	ownerOrAdmin = []membership.Role{membership.RoleOwner, membership.RoleAdmin}
	anyMember    = []membership.Role{membership.RoleOwner, membership.RoleAdmin, membership.RoleMember}
)

// DefaultRoutes is the route table served by the API.
func DefaultRoutes() RouteTable {
	return RouteTable{
		RouteProjectUpdate:      ownerOnly,
		RouteProjectDelete:      ownerOnly,
		RouteProjectActivity:    ownerOnly,
		RouteProjectUsersRole:   ownerOnly,
		RouteProjectTasksCreate: ownerOrAdmin,
		RouteProjectInvite:      ownerOrAdmin,
		RouteProjectUsersRemove: ownerOrAdmin,
		RouteProjectInvitations: ownerOrAdmin,
		RouteInvitationRevoke:   ownerOrAdmin,
		RouteTaskUpdate:         ownerOrAdmin,
		RouteTaskDelete:         ownerOrAdmin,
		RouteTaskStatus:         ownerOrAdmin,
		RouteTaskPriority:       ownerOrAdmin,
		RouteTaskAssign:         ownerOrAdmin,
		RouteTaskArchive:        ownerOrAdmin,
		RouteProjectSubscribe:   anyMember,
	}
}

// Roles returns the roles required by route.
func (t RouteTable) Roles(route RouteID) []membership.Role {
	return t[route]
}
