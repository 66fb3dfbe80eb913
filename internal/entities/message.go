package entities

// Sender identifies which side of the conversation produced a message.
// "page" covers both a human agent and the AI answering on the tenant's
// behalf; the two are only distinguishable by the presence of AnswerID.
type Sender string

const (
	SenderGuest Sender = "guest"
	SenderPage  Sender = "page"
)

// Feedback is the thumbs up/down a guest gave on an AI answer.
type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// Message is one entry in a conversation's item list. Messages are append
// only; the single mutation allowed is setting FeedbackGiven after the
// feedback endpoint acknowledged.
type Message struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Sender        Sender       `json:"sender"`
	Time          string       `json:"time"` // ISO-8601
	Items         []LinkedItem `json:"items,omitempty"`
	DisplayType   string       `json:"displayType,omitempty"` // "list" or "carousel"
	AnswerID      *int         `json:"answerId,omitempty"`
	FeedbackGiven Feedback     `json:"feedbackGiven,omitempty"`
}

// LinkedItem is a catalog reference attached to a page-sender message,
// either returned by the AI directly or recovered by auto-linking.
type LinkedItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	Price string `json:"price,omitempty"`
	Image string `json:"image,omitempty"`
	Link  string `json:"link"`
}

// AIRequest is the body posted to the backend AI proxy.
type AIRequest struct {
	Messages    []AIMessage `json:"messages"`
	PageContext string      `json:"pageContext,omitempty"`
	DataSource  string      `json:"dataSource,omitempty"`
}

// AIMessage is a single turn in the history sent to the AI proxy.
type AIMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// AIResponse is the raw reply of the AI proxy, before normalization.
// Text may itself contain JSON the model failed to format properly.
type AIResponse struct {
	Success  bool             `json:"success"`
	Text     string           `json:"text"`
	Items    []map[string]any `json:"items,omitempty"`
	Provider string           `json:"provider,omitempty"`
	AnswerID *int             `json:"answerId,omitempty"`
}
