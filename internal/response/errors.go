package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidTrack   ErrCode = "INVALID_TRACK"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrQuizNotFound    ErrCode = "QUIZ_NOT_FOUND"
	ErrAttemptNotFound ErrCode = "ATTEMPT_NOT_FOUND"

	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionOpen         ErrCode = "SESSION_ALREADY_OPEN"
	ErrIdentityUnresolved  ErrCode = "IDENTITY_UNRESOLVED"
	ErrQuizNotOpen         ErrCode = "QUIZ_NOT_OPEN"
	ErrAlreadyAttempted    ErrCode = "ALREADY_ATTEMPTED"
	ErrActionNotAllowed    ErrCode = "ACTION_NOT_ALLOWED"
	ErrNotOnLastQuestion   ErrCode = "NOT_ON_LAST_QUESTION"
	ErrInvalidAnswer       ErrCode = "INVALID_ANSWER"
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrSubmissionFailed    ErrCode = "SUBMISSION_FAILED"
	ErrCertificateRefused  ErrCode = "CERTIFICATE_UNAVAILABLE"
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidTrack:
		return "Unknown quiz track."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrUnknownAction:
		return "Unknown action."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrQuizNotFound:
		return "Quiz not found."
	case ErrAttemptNotFound:
		return "No attempt recorded for this quiz."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrSessionOpen:
		return "This quiz is already open in another window."
	case ErrIdentityUnresolved:
		return "Your identity could not be verified."
	case ErrQuizNotOpen:
		return "This quiz is not open yet."
	case ErrAlreadyAttempted:
		return "You have already attempted this quiz."
	case ErrActionNotAllowed:
		return "This action is not allowed right now."
	case ErrNotOnLastQuestion:
		return "You can only submit from the last question."
	case ErrInvalidAnswer:
		return "That answer is not one of the options."
	case ErrAlreadySubmitted:
		return "Your answers have already been submitted."
	case ErrSubmissionFailed:
		return "Your answers could not be submitted. Please retry."
	case ErrCertificateRefused:
		return "No certificate is available for this attempt."
	case ErrUpstreamUnavailable:
		return "Quiz data could not be loaded. Please try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
