package models

// EmailJob is the unit of asynchronous email work carried on the email queue.
// HTML is the rendered body; Text is the plain-text alternative. ReplyTo is
// set to the submitter's address so replies go straight back to them.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
	From    string `json:"from,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}
