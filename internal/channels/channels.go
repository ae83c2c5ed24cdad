package channels

import (
	"context"
	"net/http"
)

// Channel is an inbound surface for the agent. Routes are mounted on the
// gateway mux; Start runs background work until ctx is done.
type Channel interface {
	Name() string
	RegisterRoutes(mux *http.ServeMux)
	Start(ctx context.Context) error
}
