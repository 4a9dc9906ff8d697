package contact

// User-visible outcomes of a submission. The set is deliberately small and
// fixed; infrastructure detail never leaks into these strings.
const (
	MsgSent             = "Message sent successfully!"
	MsgRateLimited      = "Too many requests. Please wait a moment before trying again."
	MsgValidationError  = "Invalid data provided. Please check your input."
	MsgSubmissionFailed = "Failed to send message. Please try again or contact me directly."
)
