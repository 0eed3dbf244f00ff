package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/features/notification/models"
)

// PayloadField is the stream entry field holding the JSON encoded request
const PayloadField = "payload"

// maxLen caps the stream; older acknowledged entries are trimmed
const maxLen = 100000

// StreamAdder is the XADD subset of a Redis client
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Queue appends email requests to a Redis stream consumed by the
// notification worker.
type Queue struct {
	client StreamAdder
	stream string
}

func NewQueue(client StreamAdder, stream string) *Queue {
	return &Queue{client: client, stream: stream}
}

func (q *Queue) Enqueue(ctx context.Context, req models.EmailRequest) error {
	if !req.Type.Valid() {
		return errors.NewValidationError("type", fmt.Sprintf("unknown email type %q", req.Type))
	}
	if req.To == "" {
		return errors.NewValidationError("to", "recipient is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode email request")
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":       string(req.Type),
			PayloadField: string(payload),
		},
	}).Err()
	if err != nil {
		return errors.NewCacheError("enqueue email", err)
	}
	return nil
}

// Decode restores a request from stream entry values
func Decode(values map[string]interface{}) (models.EmailRequest, error) {
	var req models.EmailRequest
	raw, ok := values[PayloadField].(string)
	if !ok {
		return req, fmt.Errorf("entry has no %s field", PayloadField)
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return req, fmt.Errorf("decode email request: %w", err)
	}
	return req, nil
}
