package callNotification

import (
	"context"
	"encoding/json"
	"os"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const (
	projectID   = "chatlink-app"
	databaseURL = "https://chatlink-app-default-rtdb.firebaseio.com"

	userTopicPrefix = "user_"

	defaultCallType   = "audio"
	defaultCallStatus = "ringing"
	defaultCallBody   = "Incoming call"
)

// Sender publishes one message to the push service. *messaging.Client
// satisfies it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type Handler struct {
	sender Sender
}

func NewHandler(sender Sender) *Handler {
	return &Handler{sender: sender}
}

var handler *Handler

func init() {
	log.SetFormatter(&log.JSONFormatter{
		FieldMap: log.FieldMap{log.FieldKeyMsg: "message"},
	})
	log.SetLevel(log.InfoLevel)

	firebaseConfig := &firebase.Config{
		ProjectID:   projectID,
		DatabaseURL: databaseURL,
	}

	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	firebaseApp, err := firebase.NewApp(ctx, firebaseConfig, opts...)
	if err != nil {
		log.Errorf("initializing firebase app: %s", err)
		return
	}

	messagingClient, err := firebaseApp.Messaging(ctx)
	if err != nil {
		log.Errorf("initializing messaging client: %s", err)
		return
	}

	handler = NewHandler(messagingClient)
}

// Notify alerts the callee of a newly created call. Status mutations of
// the same record never reach this handler; they are covered by the
// call-status trigger, so the callee is alerted exactly once per call.
func (h *Handler) Notify(ctx context.Context, call *Call, callID string) {
	if call == nil || call.CalleeID == "" {
		return
	}

	topic := userTopicPrefix + call.CalleeID

	callType := call.Type
	if callType == "" {
		callType = defaultCallType
	}

	title := "Incoming audio call"
	if callType == "video" {
		title = "Incoming video call"
	}

	body := defaultCallBody
	if call.CallerName != "" {
		body = "Call from " + call.CallerName
	}

	callStatus := call.Status
	if callStatus == "" {
		callStatus = defaultCallStatus
	}

	pushMessage := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Topic: topic,
		Data: map[string]string{
			"type":          "call",
			"callType":      callType,
			"callId":        callID,
			"callerId":      call.CallerID,
			"calleeId":      call.CalleeID,
			"groupId":       call.GroupID,
			"clickEvent":    "OPEN_CALL",
			"callStatus":    callStatus,
			"callDirection": "incoming",
		},
	}

	response, err := h.sender.Send(ctx, pushMessage)
	if err != nil {
		log.Errorf("sending call notification to topic %s: %s", topic, err)
		return
	}

	log.Infof("call notification sent to topic %s: %s", topic, response)
}

// TriggerCallNotification is the entry point bound to creation at
// /calls/{callId}. Delivery is best effort: every path returns nil so the
// triggering system always observes success.
func TriggerCallNotification(ctx context.Context, e RTDBEvent) error {
	if !hasValue(e.Delta) {
		return nil
	}

	var call Call
	if err := json.Unmarshal(e.Delta, &call); err != nil {
		log.Errorf("decoding call event: %s", err)
		return nil
	}

	handler.Notify(ctx, &call, eventID(ctx))
	return nil
}
