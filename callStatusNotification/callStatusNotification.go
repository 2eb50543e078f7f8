package callStatusNotification

import (
	"context"
	"encoding/json"
	"os"
	"sync"

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
)

// trackedStatuses are the transitions worth telling both participants
// about. Intermediate and ringing updates stay silent to avoid spamming
// the call screen.
var trackedStatuses = map[string]struct{}{
	"accepted": {},
	"ended":    {},
	"rejected": {},
}

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

// Notify fans a status change out to both call participants. Only data
// is attached, no notification banner: status updates drive the call
// screen silently instead of alerting the user again.
func (h *Handler) Notify(ctx context.Context, before, after *Call, callID string) {
	if after == nil {
		return
	}

	previousStatus := defaultCallStatus
	if before != nil && before.Status != "" {
		previousStatus = before.Status
	}

	currentStatus := after.Status
	if currentStatus == "" {
		currentStatus = defaultCallStatus
	}

	if previousStatus == currentStatus {
		return
	}
	if _, ok := trackedStatuses[currentStatus]; !ok {
		return
	}

	callType := after.Type
	if callType == "" {
		callType = defaultCallType
	}

	data := map[string]string{
		"type":       "call",
		"callType":   callType,
		"callId":     callID,
		"callerId":   after.CallerID,
		"calleeId":   after.CalleeID,
		"callStatus": currentStatus,
		"clickEvent": "CALL_STATUS",
	}

	var topics []string
	if after.CallerID != "" {
		topics = append(topics, userTopicPrefix+after.CallerID)
	}
	if after.CalleeID != "" {
		topics = append(topics, userTopicPrefix+after.CalleeID)
	}

	if len(topics) == 0 {
		return
	}

	waitGroup := new(sync.WaitGroup)
	waitGroup.Add(len(topics))

	errs := make(chan error, len(topics))
	for _, topic := range topics {
		go func(topic string) {
			defer waitGroup.Done()

			_, err := h.sender.Send(ctx, &messaging.Message{
				Data:  data,
				Topic: topic,
			})
			if err != nil {
				errs <- err
			}
		}(topic)
	}

	waitGroup.Wait()
	close(errs)

	if err := <-errs; err != nil {
		log.Errorf("notifying call status change for %s: %s", callID, err)
	}
}

// TriggerCallStatusNotification is the entry point bound to updates at
// /calls/{callId}. Delivery is best effort: every path returns nil so
// the triggering system always observes success.
func TriggerCallStatusNotification(ctx context.Context, e RTDBEvent) error {
	if !hasValue(e.Delta) {
		return nil
	}

	var before Call
	if hasValue(e.Data) {
		if err := json.Unmarshal(e.Data, &before); err != nil {
			log.Errorf("decoding call snapshot: %s", err)
			return nil
		}
	}

	// Delta carries only the changed fields; overlaying it on the prior
	// snapshot reconstructs the full record.
	after := before
	if err := json.Unmarshal(e.Delta, &after); err != nil {
		log.Errorf("decoding call update: %s", err)
		return nil
	}

	handler.Notify(ctx, &before, &after, eventID(ctx))
	return nil
}
