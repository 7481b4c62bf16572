package suggest

import "context"

// Engine generates ranked slot suggestions for a request. Implementations
// validate the request client-side and fail fast before any I/O.
type Engine interface {
	Suggest(ctx context.Context, req SuggestionRequest) (*SuggestionResponse, error)
}

// Acceptor commits one suggested slot, turning it into a real schedule
// entry, and returns the new entry's identifier. The idempotency key
// identifies the confirm intent, not the attempt: retries of the same
// submission carry the same key so the server can deduplicate an attempt
// that timed out after committing.
type Acceptor interface {
	Accept(ctx context.Context, slot SuggestedSlot, req SuggestionRequest, idempotencyKey string) (string, error)
}

// Services bundles the engine pair a session works against. The pair is
// chosen once at startup from config and injected at construction; sessions
// never consult mutable global state, so an in-flight call always resolves
// against the services it started with.
type Services struct {
	Engine   Engine
	Acceptor Acceptor
}
