// Package zalo integrates with the Zalo Official Account platform: webhook
// event decoding, signature verification, access-token management and the
// outbound group messaging API.
package zalo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event is a decoded webhook payload. Zalo has shipped several payload
// layouts, so fields are read through the extractor methods below.
type Event map[string]any

// ParseEvent decodes a webhook body, keeping numbers as json.Number.
func ParseEvent(body []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	if ev == nil {
		return nil, fmt.Errorf("webhook event is not a JSON object")
	}
	return ev, nil
}

var messageEventTypes = map[string]struct{}{
	"user_send_group_text":          {},
	"user_send_group_image":         {},
	"user_send_group_link":          {},
	"user_send_group_audio":         {},
	"user_send_group_video":         {},
	"user_send_group_business_card": {},
	"user_send_group_sticker":       {},
	"user_send_group_gif":           {},
	"user_send_group_file":          {},
	"oa_send_group_text":            {},
	"oa_send_group_image":           {},
	"oa_send_group_link":            {},
	"oa_send_group_audio":           {},
	"oa_send_group_location":        {},
	"oa_send_group_video":           {},
	"oa_send_group_business_card":   {},
	"oa_send_group_sticker":         {},
	"oa_send_group_gif":             {},
	"oa_send_group_file":            {},
	// Legacy layouts.
	"user_send_text":    {},
	"oa_send_text":      {},
	"user_send_message": {},
	"message":           {},
	"text_message":      {},
	"group_message":     {},
	"gmf_message":       {},
}

var groupLifecycleEventTypes = map[string]struct{}{
	"oa_create_group":      {},
	"create_group":         {},
	"group_created":        {},
	"user_join_group":      {},
	"add_member":           {},
	"member_added":         {},
	"user_leave_group":     {},
	"remove_member":        {},
	"member_removed":       {},
	"oa_remove_group_user": {},
}

// IsMessageEventType reports whether t carries a group message.
func IsMessageEventType(t string) bool {
	_, ok := messageEventTypes[t]
	return ok
}

// IsGroupLifecycleEventType reports whether t is a group creation or membership change.
func IsGroupLifecycleEventType(t string) bool {
	_, ok := groupLifecycleEventTypes[t]
	return ok
}

// Type returns the event name, or "unknown".
func (e Event) Type() string {
	if t := e.first("event_name", "event", "type", "event_type"); t != "" {
		return t
	}
	return "unknown"
}

// GroupID returns the group the event belongs to, or "" when absent.
func (e Event) GroupID() string {
	return e.first("recipient.id", "group_id", "recipient.group_id", "group.id", "conversation.id")
}

// SenderID returns the sending user's id, or "" when absent.
func (e Event) SenderID() string {
	return e.first("sender.id", "user_id_by_app", "sender.user_id", "user_id")
}

// SenderName returns the sender's display name, or "" when absent.
func (e Event) SenderName() string {
	return e.first("sender.name", "sender.display_name", "user_name")
}

// UserIDByApp returns the sender's app-scoped user id.
func (e Event) UserIDByApp() string {
	return e.first("user_id_by_app")
}

// AppID returns the id of the app the webhook is registered for.
func (e Event) AppID() string {
	return e.first("app_id")
}

// OAID returns the Official Account id.
func (e Event) OAID() string {
	return e.first("oa_id")
}

// Timestamp returns the raw event timestamp, as sent.
func (e Event) Timestamp() string {
	return e.first("timestamp")
}

// Text returns the message text, or "" when the event carries none.
func (e Event) Text() string {
	if t := e.first("message.text", "message.content"); t != "" {
		return t
	}
	if s, ok := e["message"].(string); ok && s != "" {
		return s
	}
	return e.first("text")
}

// MessageID returns the platform message id, or "" when absent.
func (e Event) MessageID() string {
	return e.first("message.msg_id", "message.message_id", "message.id")
}

// first returns the first non-empty scalar found at the dotted paths.
func (e Event) first(paths ...string) string {
	for _, p := range paths {
		if s := e.lookup(p); s != "" {
			return s
		}
	}
	return ""
}

func (e Event) lookup(path string) string {
	var cur any = map[string]any(e)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		if cur, ok = m[part]; !ok {
			return ""
		}
	}
	return scalarString(cur)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return ""
	default:
		return ""
	}
}
