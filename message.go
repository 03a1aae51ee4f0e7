package wsfeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// TopicWildcard is the reserved topic matching every inbound message
// regardless of its type.
const TopicWildcard = "*"

// Topics emitted by the server. Any string is a valid dispatch key; these
// are the ones the backend is known to produce.
const (
	TopicThreatUpdate   = "threat_update"
	TopicTrackingUpdate = "tracking_update"
	TopicSitrepUpdate   = "sitrep_update"
	TopicTacticalUpdate = "tactical_update"
	TopicConnection     = "connection"
	TopicPong           = "pong"
	TopicSubscribed     = "subscribed"
	TopicUnsubscribed   = "unsubscribed"
	TopicStats          = "stats"
	TopicError          = "error"
)

// Channel names exposed by the server. DefaultChannel is used when no
// channel is given.
const (
	ChannelAll      = "all"
	ChannelThreats  = "threats"
	ChannelTracking = "tracking"
	ChannelSitrep   = "sitrep"
	ChannelTactical = "tactical"

	DefaultChannel = ChannelAll
)

// KnownChannel reports whether name is one of the channels the server
// partitions its stream into. Unknown names still dial fine; the server
// just never broadcasts on them.
func KnownChannel(name string) bool {
	switch name {
	case ChannelAll, ChannelThreats, ChannelTracking, ChannelSitrep, ChannelTactical:
		return true
	}
	return false
}

// Message is a single frame on the event channel, inbound or outbound.
// Type is the topic discriminator and the only required field. Data is
// left raw so each consumer decodes the payload it knows about.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Text      string          `json:"message,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

func (m Message) String() string {
	return fmt.Sprintf("Message{type=%s,data=%s}", m.Type, m.Data)
}

// Time parses the server-set timestamp. The backend emits naive ISO-8601
// (no zone designator), so RFC3339 alone does not cut it.
func (m Message) Time() (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DecodeData unmarshals the payload into v.
func (m Message) DecodeData(v any) error {
	if len(m.Data) == 0 {
		return errors.Wrap(ErrDecode, "message carries no data")
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.Wrap(ErrDecode, err.Error())
	}
	return nil
}

// Stats decodes a stats reply payload: per-channel connection counts.
func (m Message) Stats() (map[string]int, error) {
	if m.Type != TopicStats {
		return nil, errors.Wrapf(ErrDecode, "not a stats message: %s", m.Type)
	}
	counts := make(map[string]int)
	if err := m.DecodeData(&counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func decodeMessage(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, errors.Wrap(ErrDecode, err.Error())
	}
	if m.Type == "" {
		return Message{}, errors.Wrap(ErrDecode, "frame has no type")
	}
	return m, nil
}

// NewMessage builds an outbound frame with an arbitrary payload. The
// payload is marshalled eagerly so a bad value fails here, not at send
// time.
func NewMessage(topic string, payload any) (Message, error) {
	m := Message{Type: topic}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, errors.Wrap(ErrDecode, err.Error())
		}
		m.Data = data
	}
	return m, nil
}

// Control frame constructors. Control frames travel on the same session
// with the same shape as domain frames; only the type differs.

func newSubscribeFrame(channel string) Message {
	return Message{Type: "subscribe", Channel: channel}
}

func newUnsubscribeFrame(channel string) Message {
	return Message{Type: "unsubscribe", Channel: channel}
}

func newStatsRequestFrame() Message {
	return Message{Type: "get_stats"}
}

func newPingFrame() Message {
	return Message{Type: "ping"}
}
