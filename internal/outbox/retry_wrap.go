package outbox

import (
	"context"
	"errors"

	"github.com/NordCoder/Tokengate/internal/domain/outbox"
	"github.com/NordCoder/Tokengate/internal/obs/retry"
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. an undecodable payload.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// WrapKindHandler retries h under p. Errors marked Permanent end the loop on
// the first attempt whatever p.Retryable says.
func WrapKindHandler(h outbox.KindHandler, p retry.Policy) outbox.KindHandler {
	retryable := p.Retryable
	p.Retryable = func(err error) bool {
		if isPermanent(err) {
			return false
		}
		if retryable == nil {
			return err != nil
		}
		return retryable(err)
	}
	return func(ctx context.Context, data []byte) error {
		return retry.Do(ctx, func() error { return h(ctx, data) }, p)
	}
}
