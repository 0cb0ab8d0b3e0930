// interfaces.go - Dependencies the handlers consume, narrowed for testing
package api

import (
	"context"

	"github.com/rpm-monitor/backend/internal/session"
	"github.com/rpm-monitor/backend/internal/upload"
)

// SessionProvider hands out per-user session controllers.
type SessionProvider interface {
	Open(ctx context.Context, userID string) *session.Controller
	Anonymous() *session.Controller
	Count() int
}

// ImportRunner runs drawing imports in the background.
type ImportRunner interface {
	StartJob(req upload.Request, cb upload.Callbacks) upload.Job
	GetJob(id string) (upload.Job, bool)
}

// TokenIssuer signs users in and out. Nil in single-user deployments.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Revoke(token string)
}
