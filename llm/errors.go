// Protocol and validation errors raised when canonical-to-wire or
// wire-to-canonical conversion cannot proceed. These are never retried; they
// surface to the caller as the terminal error of the iteration that hit them.

package llm

import "fmt"

// MalformedToolMessageError reports a tool message that cannot be sent to any
// vendor, e.g. one missing its tool_call_id correlation.
type MalformedToolMessageError struct {
	Reason string
}

func (e *MalformedToolMessageError) Error() string {
	return fmt.Sprintf("malformed tool message: %s", e.Reason)
}

// MissingContentError reports a message whose content emptied out where the
// vendor protocol requires at least one block.
type MissingContentError struct {
	Role Role
}

func (e *MissingContentError) Error() string {
	return fmt.Sprintf("%s message has no content", e.Role)
}

// UnexpectedToolCallTypeError reports a vendor tool call of a kind other than
// a function call, which the canonical model cannot represent.
type UnexpectedToolCallTypeError struct {
	Type string
}

func (e *UnexpectedToolCallTypeError) Error() string {
	return fmt.Sprintf("unexpected tool call type %q (only function calls are supported)", e.Type)
}

// InvalidAssistantMessageError reports an assistant message the target vendor
// protocol cannot express.
type InvalidAssistantMessageError struct {
	Reason string
}

func (e *InvalidAssistantMessageError) Error() string {
	return fmt.Sprintf("invalid assistant message: %s", e.Reason)
}

// DuplicateFunctionError reports two tool-use blocks naming the same function
// inside one assistant message sent to Gemini. Gemini drops tool-call IDs, so
// the result leg could not disambiguate which call a result answers.
type DuplicateFunctionError struct {
	Name string
}

func (e *DuplicateFunctionError) Error() string {
	return fmt.Sprintf("gemini cannot represent two calls to %q in one assistant message", e.Name)
}

// EmptyResponseError reports a vendor response that decoded to no content
// blocks at all.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("empty response from %s", e.Provider)
}

// TransportError wraps a vendor HTTP/SDK failure with the provider name.
// Retrying is a collaborator concern; the engine surfaces these as-is.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
