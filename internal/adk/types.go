package adk

// RunRequest is the body of a run_sse call.
type RunRequest struct {
	AppName    string  `json:"appName"`
	UserID     string  `json:"userId"`
	SessionID  string  `json:"sessionId"`
	NewMessage Message `json:"newMessage"`
}

// Message is a single conversational turn sent to the agent.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is one fragment of a message.
type Part struct {
	Text string `json:"text,omitempty"`
}

// Session is the backend's session-creation response.
type Session struct {
	ID string `json:"id"`
}

// NewUserMessage builds a single-part user message.
func NewUserMessage(text string) Message {
	return Message{
		Role:  "user",
		Parts: []Part{{Text: text}},
	}
}
