// Package notify tells holders where to pick up their credential.
package notify

import (
	"context"
	"log/slog"

	"idmanager/pkg/platform/privacy"
)

// Invitation is what a holder needs to start the connection handshake.
type Invitation struct {
	Email          string
	CredentialName string
	DeepLinkURL    string
	PollingURL     string
	SiteURL        string
}

type Notifier interface {
	NotifyInvitation(ctx context.Context, inv Invitation) error
}

// LogNotifier records invitations in the log instead of mailing them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyInvitation(ctx context.Context, inv Invitation) error {
	n.logger.InfoContext(ctx, "credential invitation ready",
		"email", privacy.AnonymizeEmail(inv.Email),
		"credential_name", inv.CredentialName,
		"deep_link", inv.DeepLinkURL,
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
