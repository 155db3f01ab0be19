package dto

// InboundMessage is the payload of the internal POST /ingest webhook, used
// by delivery platforms that forward raw MIME over HTTP instead of SMTP.
type InboundMessage struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
	Raw  string `json:"raw" binding:"required"`
}
