package usecase

import (
	"context"

	"github.com/adms/sessiond/domain"
)

// TokenRefresher exchanges the current access token for a fresh one before
// it expires. A failure is terminal for the session; there is no retry.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, current string) (string, error)
}

// NavTreeFetcher retrieves the navigation/authorization tree for a user.
type NavTreeFetcher interface {
	FetchNavTree(ctx context.Context, userID string) ([]domain.NavNode, error)
}

// LogoutNotifier tells the backend a session ended. Best-effort only; the
// local session is cleared whether or not the call succeeds.
type LogoutNotifier interface {
	NotifyLogout(ctx context.Context, token string) error
}

// Backend bundles the HTTP collaborator surface the lifecycle depends on.
type Backend interface {
	TokenRefresher
	NavTreeFetcher
	LogoutNotifier
}

// Navigator abstracts the routing layer: it is told where the user should
// land next (login entry point after termination, intended destination
// after login). Implementations must not block.
type Navigator interface {
	Navigate(path string)
}
