package domain

// Outbound event names that are not signal kinds.
const (
	EventOnlineUsers = "online-users"
	EventUnreachable = "unreachable"
	EventNewMessage  = "new-message"
	EventError       = "error"
)

// Event is one server-to-client frame.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

type OnlineUsers struct {
	Identities []UserID `json:"identities"`
}

type Unreachable struct {
	Identity UserID `json:"identity"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}

func OnlineUsersEvent(ids []UserID) Event {
	if ids == nil {
		ids = []UserID{}
	}
	return Event{Name: EventOnlineUsers, Data: OnlineUsers{Identities: ids}}
}

func UnreachableEvent(id UserID) Event {
	return Event{Name: EventUnreachable, Data: Unreachable{Identity: id}}
}

// SignalEvent is the frame delivered to the target of a routed envelope.
func SignalEvent(env Envelope) Event {
	return Event{Name: string(env.Kind), Data: env.Fields()}
}

func NewMessageEvent(msg *Message) Event {
	return Event{Name: EventNewMessage, Data: msg}
}

func ErrorEvent(message string) Event {
	return Event{Name: EventError, Data: ErrorNotice{Message: message}}
}
