package chatlinkNotification

import (
	"context"
	"encoding/json"
	"path"

	"cloud.google.com/go/functions/metadata"
)

// RTDBEvent is the payload delivered for Realtime Database triggers.
// Data holds the value at the reference before the write, Delta the
// value written. On creation Data is null; on deletion Delta is null.
type RTDBEvent struct {
	Data  json.RawMessage `json:"data"`
	Delta json.RawMessage `json:"delta"`
}

type Message struct {
	Type        string `json:"type"`
	GroupID     string `json:"groupId"`
	ReceiverID  string `json:"receiverId"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	SenderImage string `json:"senderImage"`
	Text        string `json:"text"`
}

type Group struct {
	Name string `json:"name"`
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// eventID returns the wildcard segment of the trigger reference,
// e.g. "m42" for .../refs/messages/m42.
func eventID(ctx context.Context) string {
	meta, err := metadata.FromContext(ctx)
	if err != nil || meta.Resource == nil {
		return ""
	}

	resource := meta.Resource.RawPath
	if resource == "" {
		resource = meta.Resource.Name
	}
	if resource == "" {
		return ""
	}

	return path.Base(resource)
}
