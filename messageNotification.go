package chatlinkNotification

import (
	"context"
	"encoding/json"
	"os"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/db"
	"firebase.google.com/go/messaging"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const (
	projectID   = "chatlink-app"
	databaseURL = "https://chatlink-app-default-rtdb.firebaseio.com"

	groupsPath = "groups"

	groupTopicPrefix = "group_"
	userTopicPrefix  = "user_"

	defaultMessageTitle = "New Message"
	defaultMessageBody  = "You have a new message"
)

// Sender publishes one message to the push service. *messaging.Client
// satisfies it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// GroupStore resolves a group's display name.
type GroupStore interface {
	GroupName(ctx context.Context, groupID string) (string, error)
}

type rtdbGroupStore struct {
	client *db.Client
}

func (s *rtdbGroupStore) GroupName(ctx context.Context, groupID string) (string, error) {
	var group Group
	if err := s.client.NewRef(groupsPath + "/" + groupID).Get(ctx, &group); err != nil {
		return "", err
	}

	return group.Name, nil
}

type Handler struct {
	sender Sender
	groups GroupStore
}

func NewHandler(sender Sender, groups GroupStore) *Handler {
	return &Handler{
		sender: sender,
		groups: groups,
	}
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

	databaseClient, err := firebaseApp.Database(ctx)
	if err != nil {
		log.Errorf("initializing database client: %s", err)
		return
	}

	handler = NewHandler(messagingClient, &rtdbGroupStore{client: databaseClient})
}

// Notify sends one push notification for a newly created message. Audio
// and video messages are signaled through the call flow, not here.
func (h *Handler) Notify(ctx context.Context, message *Message, messageID string) {
	if message == nil || message.Type == "audio" || message.Type == "video" {
		return
	}

	var topic, groupName string
	switch {
	case message.GroupID != "":
		topic = groupTopicPrefix + message.GroupID

		name, err := h.groups.GroupName(ctx, message.GroupID)
		if err != nil {
			log.Errorf("unable to fetch group data for %s: %s", message.GroupID, err)
		}
		groupName = name
	case message.ReceiverID != "":
		topic = userTopicPrefix + message.ReceiverID
	default:
		log.Warnf("message %s missing groupId and receiverId", messageID)
		return
	}

	isGroup := message.GroupID != ""

	title := message.SenderName
	if isGroup {
		title = groupName
	}
	if title == "" {
		title = defaultMessageTitle
	}

	body := defaultMessageBody
	if message.Text != "" {
		body = message.Text
		if isGroup {
			body = message.SenderName + ": " + message.Text
		}
	}

	messageType := message.Type
	if messageType == "" {
		messageType = "text"
	}

	isGroupValue := "false"
	if isGroup {
		isGroupValue = "true"
	}

	pushMessage := &messaging.Message{
		Notification: &messaging.Notification{
			Title:    title,
			Body:     body,
			ImageURL: message.SenderImage,
		},
		Topic: topic,
		Data: map[string]string{
			"type":       messageType,
			"isGroup":    isGroupValue,
			"groupId":    message.GroupID,
			"groupName":  groupName,
			"senderName": message.SenderName,
			"receiverId": message.ReceiverID,
			"senderId":   message.SenderID,
			"messageId":  messageID,
			"clickEvent": clickEvent(isGroup),
		},
	}

	response, err := h.sender.Send(ctx, pushMessage)
	if err != nil {
		log.Errorf("sending notification to topic %s: %s", topic, err)
		return
	}

	log.Infof("notification sent to topic %s: %s", topic, response)
}

func clickEvent(isGroup bool) string {
	if isGroup {
		return "OPEN_GROUP_CHAT"
	}
	return "OPEN_CHAT"
}

// TriggerMessageNotification is the entry point bound to creation at
// /messages/{messageId}. Delivery is best effort: every path returns nil
// so the triggering system always observes success.
func TriggerMessageNotification(ctx context.Context, e RTDBEvent) error {
	if !hasValue(e.Delta) {
		return nil
	}

	var message Message
	if err := json.Unmarshal(e.Delta, &message); err != nil {
		log.Errorf("decoding message event: %s", err)
		return nil
	}

	handler.Notify(ctx, &message, eventID(ctx))
	return nil
}
