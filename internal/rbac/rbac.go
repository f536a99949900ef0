package rbac

import "fmt"

// Permission is the per-list role of a collaborator, ordered by capability.
type Permission string

type Action string

const (
	PermissionView  Permission = "view"
	PermissionEdit  Permission = "edit"
	PermissionAdmin Permission = "admin"
)

const (
	ActionRead      Action = "read"
	ActionEditTasks Action = "editTasks"
	ActionManage    Action = "manage"
)

// Level maps a permission onto the capability ordering view < edit < admin.
// Unknown permissions rank below view.
func (p Permission) Level() int {
	switch p {
	case PermissionView:
		return 1
	case PermissionEdit:
		return 2
	case PermissionAdmin:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether p grants every capability of other.
func (p Permission) AtLeast(other Permission) bool {
	return p.Level() >= other.Level()
}

func Can(p Permission, action Action) bool {
	switch p {
	case PermissionAdmin:
		return true
	case PermissionEdit:
		return action == ActionRead || action == ActionEditTasks
	case PermissionView:
		return action == ActionRead
	default:
		return false
	}
}

func Parse(raw string) (Permission, error) {
	switch Permission(raw) {
	case PermissionView, PermissionEdit, PermissionAdmin:
		return Permission(raw), nil
	default:
		return "", fmt.Errorf("unknown permission %q", raw)
	}
}

func Normalize(raw string) Permission {
	switch Permission(raw) {
	case PermissionView, PermissionEdit, PermissionAdmin:
		return Permission(raw)
	default:
		return PermissionView
	}
}
