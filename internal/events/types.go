package events

import (
	"math/rand"
	"time"
)

type EventType string

const (
	// Review events
	EventTypeReviewRequested EventType = "review.requested"
	EventTypeReviewApproved  EventType = "review.approved"
	EventTypeReviewRejected  EventType = "review.rejected"

	// File events
	EventTypeFileUploaded   EventType = "file.uploaded"
	EventTypeFileDeleted    EventType = "file.deleted"
	EventTypeFileDownloaded EventType = "file.downloaded"

	// User events
	EventTypeUserRegistered  EventType = "user.registered"
	EventTypeUserActivated   EventType = "user.activated"
	EventTypeUserDeactivated EventType = "user.deactivated"
	EventTypeUserDeleted     EventType = "user.deleted"
)

// BaseEvent represents the common fields for all events
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Version   string    `json:"version"`
}

// ReviewEvent is the structured record of a permission review transition.
type ReviewEvent struct {
	BaseEvent
	RequestID    string `json:"requestId"`
	RequesterID  string `json:"requesterId"`
	ReviewerID   string `json:"reviewerId,omitempty"`
	Permission   string `json:"permission"`
	ResourceKind string `json:"resourceKind"`
	ResourceID   string `json:"resourceId"`
	ResourceName string `json:"resourceName,omitempty"`
}

// FileEvent represents an event related to a file operation
type FileEvent struct {
	BaseEvent
	FileID   string `json:"fileId"`
	ActorID  string `json:"actorId"`
	FileName string `json:"fileName,omitempty"`
	Size     int64  `json:"size,omitempty"`
	IsPublic bool   `json:"isPublic,omitempty"`
}

// UserEvent represents an account lifecycle event
type UserEvent struct {
	BaseEvent
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// MailMessage is the payload the external mail worker consumes from the
// mail-events exchange. The core never waits for delivery.
type MailMessage struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
	Timestamp  int64    `json:"timestamp"`
}

func newBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Version:   "1.0",
	}
}

// NewReviewEvent creates an event for one review transition.
func NewReviewEvent(eventType EventType, requestID, requesterID, reviewerID, permission, resourceKind, resourceID, resourceName string) *ReviewEvent {
	return &ReviewEvent{
		BaseEvent:    newBaseEvent(eventType),
		RequestID:    requestID,
		RequesterID:  requesterID,
		ReviewerID:   reviewerID,
		Permission:   permission,
		ResourceKind: resourceKind,
		ResourceID:   resourceID,
		ResourceName: resourceName,
	}
}

func NewFileEvent(eventType EventType, fileID, actorID, fileName string, size int64, isPublic bool) *FileEvent {
	return &FileEvent{
		BaseEvent: newBaseEvent(eventType),
		FileID:    fileID,
		ActorID:   actorID,
		FileName:  fileName,
		Size:      size,
		IsPublic:  isPublic,
	}
}

func NewUserEvent(eventType EventType, userID, username, email string) *UserEvent {
	return &UserEvent{
		BaseEvent: newBaseEvent(eventType),
		UserID:    userID,
		Username:  username,
		Email:     email,
	}
}

func NewMailMessage(subject, body string, recipients []string) *MailMessage {
	return &MailMessage{
		ID:         generateEventID(),
		Subject:    subject,
		Body:       body,
		Recipients: recipients,
		Timestamp:  time.Now().Unix(),
	}
}

// Helper function to generate a unique event ID
func generateEventID() string {
	return time.Now().UTC().Format("20060102150405") + "-" + randomString(8)
}

// Helper function to generate a random string of a given length
func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
