package ctxutil

import (
	"context"
	"time"
)

type Key interface {
	String() string
}

type SimpleKey string

func (k SimpleKey) String() string {
	return string(k)
}

var cancelkey = SimpleKey("cancel")

// CancelContext embeds the cancel function into the context itself,
// so that holders of the context can cancel it without threading the
// function separately.
func CancelContext(ctx context.Context) context.Context {
	return cancelContext(context.WithCancel(ctx))
}

func cancelContext(ctx context.Context, cancel context.CancelFunc) context.Context {
	return context.WithValue(ctx, cancelkey, cancel)
}

// Cancel cancels a context created with CancelContext.
func Cancel(ctx context.Context) {
	ctx.Value(cancelkey).(context.CancelFunc)()
}

// TimeoutContext is CancelContext with an additional deadline.
func TimeoutContext(ctx context.Context, duration time.Duration) context.Context {
	return cancelContext(context.WithTimeout(ctx, duration))
}
