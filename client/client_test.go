package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"groupmeet/domain"
	"groupmeet/moderation"
	"groupmeet/profiles"
)

// Messages stored before a word joined the blacklist must still render
// with the word masked.
func Test_Render_Message_Masks_Blacklisted_Words(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	screener, err := moderation.NewScreener(log, []string{"sardine"})
	req.NoError(err)

	r := &repl{
		profiles: profiles.NewResolver(log, nil, profiles.NewCache(), nil),
		screener: screener,
	}

	line := r.renderMessage(domain.Message{
		ID:        uuid.New(),
		GroupID:   "g1",
		Sender:    "u1",
		Text:      "fresh sardine for sale",
		CreatedAt: time.Now(),
	})
	req.NotContains(line, "sardine")
	req.Contains(line, "*******")

	// System announcements render as-is.
	system := r.renderMessage(domain.Message{
		ID:        uuid.New(),
		GroupID:   "g1",
		Sender:    domain.SystemSender,
		Text:      "meeting at noon",
		CreatedAt: time.Now(),
	})
	req.Contains(system, "meeting at noon")
}
