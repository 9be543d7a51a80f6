package cache

import (
	"fmt"
	"strings"
)

// patternSuffix marks an invalidation key as a prefix pattern.
const patternSuffix = "*"

func ProjectKey(projectID string) string { return "project_" + projectID }
func UserProjectsKey(userID string) string { return "projects_" + userID }
func TaskKey(taskID string) string { return "task_" + taskID }
func ProjectTasksKey(projectID string) string { return "tasks_" + projectID }
func GroupedTasksKey(projectID string) string { return "tasks_" + projectID + "_grouped" }
func UserTasksKey(userID string) string { return "tasks_user_" + userID }
func ProjectUsersKey(projectID string) string { return "users_" + projectID }
func InvitationKey(invitationID string) string { return "invitation_" + invitationID }
func ProjectInvitationsKey(projectID string) string { return "invitations_" + projectID }
func UserInvitationsKey(userID string) string { return "invitations_user_" + userID }
func UserKey(userID string) string { return "user_" + userID }

// UserSearchKey keys one page of a user search. The key space is unbounded, so these
// entries carry a TTL and are invalidated through UserSearchPattern.
func UserSearchKey(query string, take, skip int) string {
	return fmt.Sprintf("users_%s_%d_%d", query, take, skip)
}

// UserSearchPattern matches every user search page. It also matches project user
// lists, which embed user fields and must be dropped on user changes anyway.
func UserSearchPattern() string {
	return Pattern("users_")
}

// Pattern turns a prefix into an invalidation key matching every key with that prefix.
func Pattern(prefix string) string {
	return prefix + patternSuffix
}

func isPattern(key string) bool {
	return strings.HasSuffix(key, patternSuffix)
}

// Keys is a small builder for invalidation sets.
type Keys []string

func (k Keys) Add(keys ...string) Keys {
	return append(k, keys...)
}

// Each appends build(id) for every non-empty id.
func (k Keys) Each(ids []string, build func(string) string) Keys {
	for _, id := range ids {
		if id != "" {
			k = append(k, build(id))
		}
	}
	return k
}
