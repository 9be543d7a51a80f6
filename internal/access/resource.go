package access

import (
	"fmt"

	"github.com/google/uuid"
)

type refKind uint8

const (
	refProject refKind = iota + 1
	refTask
	refInvitation
)

// ResourceRef addresses the project a request acts on, either directly or through a task or
// an invitation that belongs to it.
type ResourceRef struct {
	kind refKind
	id   uuid.UUID
}

func Project(id uuid.UUID) ResourceRef { return ResourceRef{kind: refProject, id: id} }
func Task(id uuid.UUID) ResourceRef { return ResourceRef{kind: refTask, id: id} }
func Invitation(id uuid.UUID) ResourceRef { return ResourceRef{kind: refInvitation, id: id} }

// None is the ref of routes that are not scoped to a project.
var None = ResourceRef{}

func (r ResourceRef) ID() uuid.UUID { return r.id }

func (r ResourceRef) String() string {
	switch r.kind {
	case refProject:
		return "project:" + r.id.String()
	case refTask:
		return "task:" + r.id.String()
	case refInvitation:
		return "invitation:" + r.id.String()
	default:
		return "none"
	}
}

func (r ResourceRef) validate() error {
	if r.kind == 0 {
		return fmt.Errorf("route requires a resource reference")
	}
	return nil
}
