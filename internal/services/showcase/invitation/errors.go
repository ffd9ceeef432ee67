package invitation

import (
	"github.com/google/uuid"
	apperrors "github.com/louisbranch/showcase/internal/platform/errors"
)

// notFound builds the one error returned for records that are missing or
// outside the caller's scope. Both cases share the same message and metadata.
func notFound(resource string, sandboxID uuid.UUID) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound, resource+" not found", map[string]string{
		"Resource":  resource,
		"SandboxID": sandboxID.String(),
	})
}

func alreadyAccepted(invitationID uuid.UUID) error {
	return apperrors.WithMetadata(apperrors.CodeInvitationAlreadyAccepted, "invitation already accepted", map[string]string{
		"MessageID": invitationID.String(),
	})
}

func remoteExchangeFailed(operation string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeRemoteExchangeFailed, "wallet "+operation+" failed", map[string]string{
		"Operation": operation,
	}, cause)
}

func invalidArgument(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, reason, map[string]string{"Reason": reason})
}

func unauthenticated(message string) error {
	return apperrors.New(apperrors.CodeUnauthenticated, message)
}
