package errors

var (
	// Domain errors — used across chat/call services
	ErrConversationNotFound = NotFound("conversation not found")
	ErrMessageNotFound      = NotFound("message not found")
	ErrNotParticipant       = Forbidden("user is not a participant of this conversation")
	ErrEmptyContent         = InvalidArg("message content must be 1-2000 characters")
	ErrRateLimited          = New(CodeRateLimited, "rate limit exceeded, slow down")
	ErrSelfCall             = InvalidArg("cannot call yourself")
	ErrCallNotFound         = NotFound("call not found")
	ErrCallNotRinging       = InvalidArg("call is not ringing")
	ErrNotCallParty         = Forbidden("user is not a party of this call")
	ErrAlreadyOnCall        = New(CodeAlreadyOnCall, "you already have an active call")
	ErrRecipientBusy        = New(CodeRecipientBusy, "recipient is on another call")
	ErrRecipientOffline     = New(CodeRecipientOffline, "recipient is not online")
	ErrCallTimeout          = New(CodeTimeout, "call was not answered")
	ErrInvalidToken         = Unauthorized("invalid or expired token")
	ErrBanned               = Unauthorized("account is suspended")
)
