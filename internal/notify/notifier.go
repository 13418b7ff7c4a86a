// Package notify is the outbound port to the chat platform: announcements,
// per-match rooms, roles and identity lookups.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jason-s-yu/tourney/internal/models"
)

// Roles granted by the tournament.
const (
	RoleParticipant = "participant"
	RoleChampion    = "champion"
)

// Field is a name/value row of a RichMessage.
type Field struct {
	Name  string
	Value string
}

// RichMessage is a structured announcement such as a results summary.
type RichMessage struct {
	Title  string
	Lines  []string
	Fields []Field
}

// Plain renders the message without markup.
func (m RichMessage) Plain() string {
	var b strings.Builder
	b.WriteString(m.Title)
	for _, l := range m.Lines {
		b.WriteString("\n")
		b.WriteString(l)
	}
	for _, f := range m.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
	}
	return b.String()
}

// User is a resolved chat-platform identity.
type User struct {
	ID   string
	Name string
}

// Notifier is everything the tournament needs from the chat platform. Targets
// are opaque refs: "" is the event's main chat, otherwise a Channels.Text ref.
// Announce methods return a ref to the posted message.
type Notifier interface {
	Announce(ctx context.Context, text, target string) (string, error)
	AnnounceRich(ctx context.Context, msg RichMessage, target string) (string, error)
	// EditRich re-renders a posted rich message in place.
	EditRich(ctx context.Context, ref string, msg RichMessage) error
	CreateMatchChannels(ctx context.Context, name string) (models.Channels, error)
	TeardownChannels(ctx context.Context, ch models.Channels) error
	GrantRole(ctx context.Context, user, role string) error
	RevokeRole(ctx context.Context, user, role string) error
	ResolveChannelByID(ctx context.Context, id string) error
	// ResolveMessageByRef checks that a posted message ref still addresses a
	// reachable message.
	ResolveMessageByRef(ctx context.Context, ref string) error
	ResolveUserByID(ctx context.Context, id string) (User, error)
}
