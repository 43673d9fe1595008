// Package errors provides the structured error handling used across rpg-core.
//
// Every failure the game core reports to a caller flows through this package:
//   - Structured errors with codes, messages, and metadata
//   - gRPC integration with bidirectional conversion
//   - Error context preservation through wrapping
//   - Validation error helpers
//   - Type-safe error checking
//
// # Basic Usage
//
// Creating errors:
//
//	err := errors.NotFound("battle not found")
//	err := errors.InvalidArgumentf("invalid quantity: %d", qty)
//
// Adding metadata:
//
//	err := errors.NotFound("character not found").
//	    WithMeta("character_id", characterID)
//
// Wrapping errors:
//
//	if err := repo.Get(ctx, id); err != nil {
//	    return errors.Wrap(err, "failed to get character")
//	}
//
// Changing error semantics:
//
//	if err := client.Get(ctx, key).Err(); err != nil {
//	    if err == redis.Nil {
//	        return errors.WrapWithCode(err, errors.CodeNotFound, "character not found")
//	    }
//	    return errors.Wrap(err, "storage error")
//	}
//
// # Error Checking
//
// Type checking:
//
//	if errors.IsNotFound(err) {
//	    // Handle not found case
//	}
//
// Extracting information:
//
//	code := errors.GetCode(err)
//	message := errors.GetMessage(err)
//	meta := errors.GetMeta(err)
//
// # Validation Errors
//
// Using the validation builder:
//
//	vb := errors.NewValidationBuilder()
//	errors.ValidateRequired("player_id", input.PlayerID, vb)
//	errors.ValidatePositive("quantity", input.Quantity, vb)
//	if err := vb.Build(); err != nil {
//	    return err
//	}
//
// # Layer-Specific Guidelines
//
// Repository layer:
//   - Return domain-specific errors (NotFound, AlreadyExists)
//   - Include relevant IDs in metadata
//   - Wrap storage errors with context
//
// Orchestrator layer:
//   - Validate inputs and return InvalidArgument errors
//   - Check gameplay preconditions (gold, materials, SP, session ownership)
//     and return FailedPrecondition or PermissionDenied errors
//   - Wrap repository errors with business context
//
// Server layer:
//   - Convert errors to gRPC format with ToGRPCError
//   - Log internal errors for debugging
//
// The game core never lets a panic cross a package boundary. Unknown IDs,
// insufficient resources, and expired sessions are ordinary return values
// with the codes below, not exceptional control flow.
//
// # Error Codes
//
// The following error codes are available:
//   - NotFound: Resource not found (unknown character/battle/recipe/listing)
//   - InvalidArgument: Invalid input provided
//   - AlreadyExists: Resource already exists
//   - PermissionDenied: Caller does not own the session/job/listing
//   - FailedPrecondition: Gameplay requirements not met
//   - ResourceExhausted: Rate limit or cap exceeded
//   - Internal: Internal server error
//   - Unavailable: Storage temporarily unavailable (CAS retries exhausted)
//   - Unauthenticated: Authentication required
//   - Aborted: Operation aborted
//   - OutOfRange: Value out of valid range
//   - Unimplemented: Feature not implemented
//   - DataLoss: Unrecoverable data loss
//   - Canceled: Operation canceled
//   - DeadlineExceeded: Operation timeout
package errors
