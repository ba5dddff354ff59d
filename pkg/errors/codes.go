package errors

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeNotAuthorized    Code = "NOT_AUTHORIZED"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeAlreadyOnCall    Code = "ALREADY_ON_CALL"
	CodeRecipientBusy    Code = "RECIPIENT_BUSY"
	CodeRecipientOffline Code = "RECIPIENT_OFFLINE"
	CodeTimeout          Code = "TIMEOUT"
	CodeInternal         Code = "INTERNAL"
)
