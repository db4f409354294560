package domain

// Message authorship.
const (
	WhoUser = "user"
	WhoBot  = "bot"
)

// AttachmentPrefix marks an image the buyer sent. The URL follows the
// prefix so history stays a flat list of text records.
const AttachmentPrefix = "ATTACHMENT::"

// Message is a single turn in a conversation, as stored and replayed.
// TS is unix milliseconds so clients can compare against their own
// watermark without parsing.
type Message struct {
	Who  string `json:"who"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}
