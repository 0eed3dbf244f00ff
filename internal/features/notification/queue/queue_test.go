package queue

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/features/notification/models"
)

type fakeStream struct {
	added []*redis.XAddArgs
	err   error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.added = append(f.added, a)
	return redis.NewStringResult("1-0", f.err)
}

func TestEnqueue_RoundTrip(t *testing.T) {
	stream := &fakeStream{}
	q := NewQueue(stream, "notifications:email")

	req := models.EmailRequest{
		Type: models.EmailBadgeEarned,
		To:   "fan@example.com",
		Name: "Asha",
		Data: map[string]interface{}{"badge_name": "Week Warrior"},
	}
	require.NoError(t, q.Enqueue(context.Background(), req))

	require.Len(t, stream.added, 1)
	args := stream.added[0]
	assert.Equal(t, "notifications:email", args.Stream)
	values, ok := args.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "badge_earned", values["type"])

	decoded, err := Decode(values)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)
}

func TestEnqueue_Rejects(t *testing.T) {
	stream := &fakeStream{}
	q := NewQueue(stream, "s")

	err := q.Enqueue(context.Background(), models.EmailRequest{Type: "spam", To: "a@b.c"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
	err = q.Enqueue(context.Background(), models.EmailRequest{Type: models.EmailWelcome})
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
	assert.Empty(t, stream.added)
}

func TestEnqueue_RedisFailure(t *testing.T) {
	q := NewQueue(&fakeStream{err: fmt.Errorf("connection refused")}, "s")

	err := q.Enqueue(context.Background(), models.EmailRequest{Type: models.EmailWelcome, To: "a@b.c"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeCacheError))
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(map[string]interface{}{"type": "welcome"})
	assert.Error(t, err)
	_, err = Decode(map[string]interface{}{PayloadField: "{"})
	assert.Error(t, err)
}
