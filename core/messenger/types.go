package messenger

// Callback is the body Facebook posts to the webhook.
type Callback struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the events of one page.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging is a single webhook event.
type Messaging struct {
	Sender    User      `json:"sender"`
	Recipient User      `json:"recipient"`
	Timestamp int64     `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
	Postback  *Postback `json:"postback,omitempty"`
}

// User identifies a page-scoped sender or recipient.
type User struct {
	ID string `json:"id"`
}

// Message is the inbound message payload. Text is empty for attachments.
type Message struct {
	Mid         string       `json:"mid,omitempty"`
	Text        string       `json:"text,omitempty"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is kept only to recognise non-text messages.
type Attachment struct {
	Type string `json:"type"`
}

// Postback is sent when a user taps a button.
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type sendRequest struct {
	MessagingType string      `json:"messaging_type"`
	Recipient     User        `json:"recipient"`
	Message       sendMessage `json:"message"`
}

type sendMessage struct {
	Text string `json:"text"`
}

type graphErrorBody struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}
