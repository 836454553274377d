package kafka

import (
	"context"
	"encoding/json"
	"fmt"
)

func JSONHandler[M any](handle func(ctx context.Context, key []byte, m M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		var msg M
		if err := json.Unmarshal(value, &msg); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		return handle(ctx, key, msg)
	}
}
