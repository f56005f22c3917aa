package identity

import "context"

// Notifier delivers a verification code to an identity's contact channel
// (email or SMS). The core only calls it and tolerates its failure: a failed
// Send is logged and never propagates as a failure of the surrounding
// registration or resend flow.
type Notifier interface {
	Send(ctx context.Context, identity Identity, code string) error
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(ctx context.Context, identity Identity, code string) error

// Send satisfies the Notifier interface.
func (f NotifierFunc) Send(ctx context.Context, identity Identity, code string) error {
	if f == nil {
		return nil
	}
	return f(ctx, identity, code)
}

type noopNotifier struct{}

func (noopNotifier) Send(ctx context.Context, identity Identity, code string) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
