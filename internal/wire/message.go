// Package wire implements the length-prefixed framing and message
// enumeration used to carry control and payload traffic between two
// tunnel peers over a single bidirectional byte stream.
package wire

// Kind identifies which variant of the message enumeration a frame
// carries. The numeric values are part of the wire contract and must
// not be renumbered.
type Kind uint8

const (
	KindFatalError Kind = iota
	KindHangup
	KindNewTopic
	KindSetTopicSubscribed
	KindDeletedTopic
	KindPublishToTopic
)

func (k Kind) String() string {
	switch k {
	case KindFatalError:
		return "FatalError"
	case KindHangup:
		return "Hangup"
	case KindNewTopic:
		return "NewTopic"
	case KindSetTopicSubscribed:
		return "SetTopicSubscribed"
	case KindDeletedTopic:
		return "DeletedTopic"
	case KindPublishToTopic:
		return "PublishToTopic"
	default:
		return "Unknown"
	}
}

// Message is the sum type of everything that can flow across the
// tunnel after the handshake. Concrete variants are value types below.
type Message interface {
	messageKind() Kind
}

// FatalError is sent best-effort by a peer that is about to terminate
// due to an unrecoverable condition. Receipt obliges the other side to
// terminate as well.
type FatalError struct {
	Message string
}

func (FatalError) messageKind() Kind { return KindFatalError }

// Hangup announces a graceful, voluntary shutdown.
type Hangup struct{}

func (Hangup) messageKind() Kind { return KindHangup }

// NewTopic announces that a topic has appeared on the sender's local
// bus and should be mirrored as a publisher on the receiver.
type NewTopic struct {
	Name        string
	MessageType string
}

func (NewTopic) messageKind() Kind { return KindNewTopic }

// SetTopicSubscribed asks the receiver to start or stop forwarding
// payloads published on the named topic.
type SetTopicSubscribed struct {
	Name       string
	Subscribed bool
}

func (SetTopicSubscribed) messageKind() Kind { return KindSetTopicSubscribed }

// DeletedTopic announces that a previously mirrored topic no longer
// exists on the sender's local bus.
type DeletedTopic struct {
	Name string
}

func (DeletedTopic) messageKind() Kind { return KindDeletedTopic }

// PublishToTopic carries a single opaque payload published on the
// sender's local bus for the named topic.
type PublishToTopic struct {
	Name    string
	Payload []byte
}

func (PublishToTopic) messageKind() Kind { return KindPublishToTopic }

// Header is exchanged once, in each direction, immediately after the
// transport is ready. It is framed identically to Message but is never
// part of the Message enumeration and is only valid as the very first
// frame sent or received.
type Header struct {
	Version uint16
}

// envelope is the on-the-wire representation of Message: a discriminant
// plus the union of every variant's fields. Fields are tagged
// omitempty so a given frame only carries the bytes its variant needs.
type envelope struct {
	Kind        Kind   `json:"kind"`
	Message     string `json:"message,omitempty"`
	Name        string `json:"name,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	Subscribed  bool   `json:"subscribed,omitempty"`
	Payload     []byte `json:"payload,omitempty"`
}

func toEnvelope(m Message) envelope {
	switch v := m.(type) {
	case FatalError:
		return envelope{Kind: KindFatalError, Message: v.Message}
	case Hangup:
		return envelope{Kind: KindHangup}
	case NewTopic:
		return envelope{Kind: KindNewTopic, Name: v.Name, MessageType: v.MessageType}
	case SetTopicSubscribed:
		return envelope{Kind: KindSetTopicSubscribed, Name: v.Name, Subscribed: v.Subscribed}
	case DeletedTopic:
		return envelope{Kind: KindDeletedTopic, Name: v.Name}
	case PublishToTopic:
		return envelope{Kind: KindPublishToTopic, Name: v.Name, Payload: v.Payload}
	default:
		// Unreachable for any Message produced by this package; callers
		// cannot construct unexported variants.
		panic("wire: unknown message variant")
	}
}

func fromEnvelope(e envelope) (Message, error) {
	switch e.Kind {
	case KindFatalError:
		return FatalError{Message: e.Message}, nil
	case KindHangup:
		return Hangup{}, nil
	case KindNewTopic:
		return NewTopic{Name: e.Name, MessageType: e.MessageType}, nil
	case KindSetTopicSubscribed:
		return SetTopicSubscribed{Name: e.Name, Subscribed: e.Subscribed}, nil
	case KindDeletedTopic:
		return DeletedTopic{Name: e.Name}, nil
	case KindPublishToTopic:
		return PublishToTopic{Name: e.Name, Payload: e.Payload}, nil
	default:
		return nil, &DecodeError{Reason: "unknown message kind " + e.Kind.String()}
	}
}

// DecodeError reports a malformed frame. It is always fatal to the
// stream it was read from.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "wire: " + e.Reason }
