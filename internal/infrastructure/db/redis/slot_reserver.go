package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// reservationTTL bounds how long a slot stays reserved when the booking that
// claimed it never lands (process crash between reserve and insert). Once the
// appointment row exists, the window pre-check takes over.
const reservationTTL = 30 * time.Second

// SlotReserver claims agenda slots in Redis so concurrent bookings for the
// same provider window get a fast rejection before hitting the database.
// Key format: slot:<provider_id>:<bucket>
type SlotReserver struct {
	client *redis.Client
}

// NewSlotReserver creates a SlotReserver wrapping the given Redis client.
func NewSlotReserver(client *redis.Client) *SlotReserver {
	return &SlotReserver{client: client}
}

// Reserve claims the slot. It returns false when another booking holds it.
func (s *SlotReserver) Reserve(ctx context.Context, providerID string, bucket int64) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(providerID, bucket), "1", reservationTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	return ok, nil
}

// Release frees a reservation after a failed insert so the slot can be
// retried before the TTL runs out.
func (s *SlotReserver) Release(ctx context.Context, providerID string, bucket int64) error {
	return s.client.Del(ctx, s.key(providerID, bucket)).Err()
}

func (s *SlotReserver) key(providerID string, bucket int64) string {
	return fmt.Sprintf("slot:%s:%d", providerID, bucket)
}
