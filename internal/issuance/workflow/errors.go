package workflow

import (
	"fmt"

	dErrors "idmanager/pkg/domain-errors"
)

var errLockUnavailable = dErrors.New(dErrors.CodeTimeout, "workflow lock unavailable")

func notFoundf(format string, args ...any) error {
	return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf(format, args...))
}

// AlreadyAccepted is returned when the holder has already accepted the
// latest offer for a request.
func AlreadyAccepted(code string) error {
	return dErrors.New(dErrors.CodeAlreadyAccepted, "credential already accepted - code: "+code)
}

// AlreadyRevoked is returned for any transition on a revoked request.
func AlreadyRevoked(code string) error {
	return dErrors.New(dErrors.CodeAlreadyRevoked, "credential request already revoked - code: "+code)
}
