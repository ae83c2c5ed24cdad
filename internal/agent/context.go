package agent

import "context"

type contextKey int

const (
	sessionIDKey contextKey = iota
	tweetIDKey
	emitKey
)

func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithTweetID carries the tweet being answered so platform tools can
// reply to it without the model repeating the id.
func ContextWithTweetID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tweetIDKey, id)
}

func TweetIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tweetIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithEmit(ctx context.Context, emit func(Event)) context.Context {
	return context.WithValue(ctx, emitKey, emit)
}

func EmitFromContext(ctx context.Context) func(Event) {
	if v, ok := ctx.Value(emitKey).(func(Event)); ok {
		return v
	}
	return nil
}
