package audit

import (
	"strconv"
	"time"

	"github.com/researchportal/pubportal/pkg/policy"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin         EventType = "auth.login"
	EventTypeAuthLoginFailed   EventType = "auth.login_failed"
	EventTypeAuthOTPRequest    EventType = "auth.otp_request"
	EventTypeAuthOTPVerify     EventType = "auth.otp_verify"
	EventTypeAuthPasswordReset EventType = "auth.password_reset"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// User management events
	EventTypeUserCreate         EventType = "user.create"
	EventTypeUserUpdate         EventType = "user.update"
	EventTypeUserDelete         EventType = "user.delete"
	EventTypeUserSettingsUpdate EventType = "user.settings_update"

	// Publication events
	EventTypePublicationCreate EventType = "publication.create"
	EventTypePublicationUpdate EventType = "publication.update"
	EventTypePublicationDelete EventType = "publication.delete"
	EventTypePublicationExport EventType = "publication.export"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeUser        ResourceType = "user"
	ResourceTypePublication ResourceType = "publication"
	ResourceTypeSession     ResourceType = "session"
)

// Event is a single audit log entry
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	ActorID    *int64      `json:"actor_id,omitempty"`
	ActorRole  policy.Role `json:"actor_role,omitempty"`
	ActorEmail string      `json:"actor_email,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Rule is the policy rule that decided a permission check
	Rule string `json:"rule,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Changes  *ChangeDetails         `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// NewEvent returns an event attributed to actor. A zero UserID leaves the
// actor id unset.
func NewEvent(eventType EventType, status EventStatus, actor policy.Actor) *Event {
	e := &Event{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		Status:     status,
		ActorRole:  actor.Role,
		ActorEmail: actor.Email,
	}
	if actor.UserID != 0 {
		id := actor.UserID
		e.ActorID = &id
	}
	return e
}

// On sets the resource the event refers to
func (e *Event) On(resourceType ResourceType, id int64) *Event {
	e.ResourceType = resourceType
	if id != 0 {
		e.ResourceID = strconv.FormatInt(id, 10)
	}
	return e
}

// WithMessage sets the message
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// WithMetadata adds a metadata entry
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Denied builds an access-denied event from a policy decision
func Denied(actor policy.Actor, resourceType ResourceType, id int64, d policy.Decision) *Event {
	e := NewEvent(EventTypeAuthzAccessDenied, EventStatusDenied, actor).On(resourceType, id)
	e.Rule = d.Rule
	e.Message = d.Reason
	return e
}

// Mutation builds a success event for a write
func Mutation(eventType EventType, actor policy.Actor, resourceType ResourceType, id int64) *Event {
	return NewEvent(eventType, EventStatusSuccess, actor).On(resourceType, id)
}
