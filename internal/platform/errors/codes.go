// Package errors provides structured error handling for the Nightfall engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionPlayerCountTooLow        Code = "SESSION_PLAYER_COUNT_TOO_LOW"
	CodeSessionInvalidStatusTransition  Code = "SESSION_INVALID_STATUS_TRANSITION"
	CodeSessionStatusDisallowsOp        Code = "SESSION_STATUS_DISALLOWS_OPERATION"
	CodeSessionAlreadyEnded             Code = "SESSION_ALREADY_ENDED"
	CodeSessionRosterRoleMismatch       Code = "SESSION_ROSTER_ROLE_MISMATCH"
	CodeSessionPersonaBeforeRolesBroken Code = "SESSION_PERSONA_ORDERING_VIOLATED"

	// Player errors
	CodePlayerNotFound     Code = "PLAYER_NOT_FOUND"
	CodePlayerAlreadyDead  Code = "PLAYER_ALREADY_DEAD"
	CodePlayerEmptyName    Code = "PLAYER_EMPTY_NAME"
	CodePlayerInvalidRole  Code = "PLAYER_INVALID_ROLE"
	CodePlayerDuplicateID  Code = "PLAYER_DUPLICATE_ID"
	CodeVigilanteShotSpent Code = "PLAYER_VIGILANTE_SHOT_SPENT"

	// Event and log integrity errors
	CodeEventSequenceGap    Code = "EVENT_SEQUENCE_GAP"
	CodeEventDuplicateSeq   Code = "EVENT_DUPLICATE_SEQUENCE"
	CodeEventChainBroken    Code = "EVENT_CHAIN_BROKEN"
	CodeEventInvalidType    Code = "EVENT_INVALID_TYPE"
	CodeEventInvalidPayload Code = "EVENT_INVALID_PAYLOAD"

	// Oracle errors
	CodeOracleTimeout         Code = "ORACLE_TIMEOUT"
	CodeOracleDecisionInvalid Code = "ORACLE_DECISION_INVALID"
	CodeOracleUnavailable     Code = "ORACLE_UNAVAILABLE"

	// Snapshot and recovery errors
	CodeSnapshotCorrupt     Code = "SNAPSHOT_CORRUPT"
	CodeSnapshotUnavailable Code = "SNAPSHOT_UNAVAILABLE"
	CodeRecoveryRequired    Code = "RECOVERY_REQUIRED"

	// Subscription errors
	CodeSubscriptionOutOfRange   Code = "SUBSCRIPTION_OUT_OF_RANGE"
	CodeSubscriptionGrantDenied  Code = "SUBSCRIPTION_GRANT_DENIED"
	CodeSubscriptionSessionGone  Code = "SUBSCRIPTION_SESSION_GONE"
	CodeSubscriptionSlowConsumer Code = "SUBSCRIPTION_SLOW_CONSUMER"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps the domain code to a gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeNotFound, CodePlayerNotFound:
		return codes.NotFound
	case CodeSessionPlayerCountTooLow, CodePlayerEmptyName, CodePlayerInvalidRole,
		CodePlayerDuplicateID, CodeEventInvalidType, CodeEventInvalidPayload:
		return codes.InvalidArgument
	case CodeSessionInvalidStatusTransition, CodeSessionStatusDisallowsOp,
		CodeSessionAlreadyEnded, CodePlayerAlreadyDead, CodeVigilanteShotSpent:
		return codes.FailedPrecondition
	case CodeSubscriptionOutOfRange:
		return codes.OutOfRange
	case CodeSubscriptionGrantDenied:
		return codes.PermissionDenied
	case CodeOracleTimeout:
		return codes.DeadlineExceeded
	case CodeOracleUnavailable, CodeSnapshotUnavailable:
		return codes.Unavailable
	case CodeEventSequenceGap, CodeEventDuplicateSeq, CodeEventChainBroken,
		CodeSnapshotCorrupt, CodeRecoveryRequired:
		return codes.DataLoss
	case CodeSubscriptionSlowConsumer:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}
