package platform

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors for the platform call taxonomy. Adapters must translate
// the platform's wire responses into these so callers can branch with
// errors.Is.
var (
	ErrNotFound    = errors.New("platform: not found")
	ErrForbidden   = errors.New("platform: forbidden")
	ErrRateLimited = errors.New("platform: rate limited")
)

// Overwrite is one per-identifier entry in a container's permission overlay.
type Overwrite struct {
	TargetID string
	IsRole   bool
	Read     bool
	Write    bool
}

// Controls describes the interactive affordances attached to a ticket's
// control message. Rebuilt from persisted state alone on recovery.
type Controls struct {
	AcceptEnabled bool
	CloseEnabled  bool
}

// Message is a fetched platform message. IsOwn marks messages the bot
// itself authored.
type Message struct {
	ID          string
	ContainerID string
	AuthorID    string
	IsOwn       bool
	Content     string
	SentAt      time.Time
	Attachments []Attachment
}

// Attachment references an uploaded file on a message.
type Attachment struct {
	ID        string
	FileName  string
	SizeBytes int64
	URL       string
}

// Client is the chat-platform collaborator. Every call may block and may
// fail; no call retries internally.
type Client interface {
	// Groups (fixed-capacity container collections).
	CreateGroup(ctx context.Context, name string) (string, error)
	GroupExists(ctx context.Context, groupID string) (bool, error)
	GroupChildCount(ctx context.Context, groupID string) (int, error)

	// Containers (channels or threads hosting one ticket each).
	CreateContainer(ctx context.Context, kind string, groupID, name string, overwrites []Overwrite) (string, error)
	ContainerExists(ctx context.Context, containerID string) (bool, error)
	MoveContainer(ctx context.Context, containerID, groupID string) error
	SetOverwrites(ctx context.Context, containerID string, overwrites []Overwrite) error
	GrantAccess(ctx context.Context, containerID, memberID string) error

	// Messaging.
	SendMessage(ctx context.Context, containerID, content string) (string, error)
	FetchMessage(ctx context.Context, containerID, messageID string) (*Message, error)
	EditMessageControls(ctx context.Context, containerID, messageID string, controls Controls) error
	DirectMessage(ctx context.Context, memberID, content string) error
	ContainerMessages(ctx context.Context, containerID string, limit int) ([]Message, error)
	DownloadAttachment(ctx context.Context, att Attachment) (io.ReadCloser, error)

	// Directory.
	RoleMembers(ctx context.Context, roleID string) ([]string, error)
	HasElevatedPrivilege(ctx context.Context, memberID string) (bool, error)
}
