package callStatusNotification

import (
	"context"
	"encoding/json"
	"path"

	"cloud.google.com/go/functions/metadata"
)

// RTDBEvent is the payload delivered for Realtime Database triggers.
// Data holds the value at the reference before the write; Delta holds
// only the fields changed by the write. On deletion Delta is null.
type RTDBEvent struct {
	Data  json.RawMessage `json:"data"`
	Delta json.RawMessage `json:"delta"`
}

type Call struct {
	CalleeID   string `json:"calleeId"`
	CallerID   string `json:"callerId"`
	CallerName string `json:"callerName"`
	Type       string `json:"type"`
	GroupID    string `json:"groupId"`
	Status     string `json:"status"`
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// eventID returns the wildcard segment of the trigger reference,
// e.g. "c17" for .../refs/calls/c17.
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
