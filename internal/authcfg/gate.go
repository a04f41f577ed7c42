package authcfg

import "github.com/zenwatch/zenwatch/internal/db/models"

// Operation identifies one caller-facing operation for authorization.
type Operation string

// Caller-facing operations.
const (
	OpGetAuthConfig      Operation = "authentication.get"
	OpUpdateAuthConfig   Operation = "authentication.update"
	OpListProviders      Operation = "directory.list"
	OpAddProvider        Operation = "directory.add"
	OpUpdateProvider     Operation = "directory.update"
	OpRemoveProvider     Operation = "directory.remove"
	OpSetDefaultProvider Operation = "directory.setdefault"
	OpTestProvider       Operation = "directory.test"
)

// Actor is the acting principal of a request.
type Actor struct {
	ID   uint64
	Type models.UserType
}

// mutating reports whether the operation changes stored state. TestProvider
// touches no stored state but reaches out to an external server with
// credentials, so it is gated like a mutation.
func mutating(op Operation) bool {
	switch op {
	case OpGetAuthConfig, OpListProviders:
		return false
	default:
		return true
	}
}

// Authorize checks that the actor may perform the operation. Mutations
// require the super admin tier; reads are unrestricted inside the internal
// trust boundary. Pure function of (actor type, operation).
func Authorize(actor Actor, op Operation) error {
	if mutating(op) && actor.Type != models.UserTypeSuperAdmin {
		return ErrPermissionDenied
	}

	return nil
}
