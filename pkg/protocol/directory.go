package protocol

import "context"

// DirectoryLookup resolves a role or group hint to concrete user ids.
// The engine functions correctly without one: tasks stay unassigned and
// carry their candidate hints for later claiming.
type DirectoryLookup interface {
	// UsersByRole returns the user ids holding a role.
	UsersByRole(ctx context.Context, roleID string) ([]string, error)
	// UsersByGroup returns the user ids belonging to a group.
	UsersByGroup(ctx context.Context, groupID string) ([]string, error)
}
