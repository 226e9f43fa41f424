package distributed

import (
	"context"
	"fmt"
	"time"

	"deskrelay/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SharedPeerRegistry records which relay instance each peer is attached to,
// so that any instance can report the cluster-wide peer count.
type SharedPeerRegistry struct {
	client     *redis.Client
	instanceID string
	prefix     string
	ttl        time.Duration
	logger     *zap.SugaredLogger
}

func NewSharedPeerRegistry(
	client *redis.Client,
	prefix string,
	instanceID string,
	logger *zap.SugaredLogger,
) *SharedPeerRegistry {
	return &SharedPeerRegistry{
		client:     client,
		instanceID: instanceID,
		prefix:     prefix,
		ttl:        10 * time.Minute,
		logger:     logger,
	}
}

func (r *SharedPeerRegistry) Join(ctx context.Context, id domain.PeerID) error {
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.instanceKey(), string(id))
	pipe.Expire(ctx, r.instanceKey(), r.ttl)
	pipe.SAdd(ctx, r.instancesKey(), r.instanceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register peer: %w", err)
	}
	return nil
}

func (r *SharedPeerRegistry) Leave(ctx context.Context, id domain.PeerID) error {
	if err := r.client.SRem(ctx, r.instanceKey(), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to unregister peer: %w", err)
	}
	return nil
}

// ClusterPeers counts peers across every instance whose set has not expired.
func (r *SharedPeerRegistry) ClusterPeers(ctx context.Context) (int64, error) {
	instances, err := r.client.SMembers(ctx, r.instancesKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list instances: %w", err)
	}

	var total int64
	for _, instance := range instances {
		n, err := r.client.SCard(ctx, r.prefix+"instance:"+instance).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to count peers of %s: %w", instance, err)
		}
		if n == 0 {
			r.client.SRem(ctx, r.instancesKey(), instance)
			continue
		}
		total += n
	}
	return total, nil
}

// Cleanup removes every peer recorded for this instance.
func (r *SharedPeerRegistry) Cleanup(ctx context.Context) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.instanceKey())
	pipe.SRem(ctx, r.instancesKey(), r.instanceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clean up instance peers: %w", err)
	}
	r.logger.Infow("Cleaned up shared peer registry", "instance_id", r.instanceID)
	return nil
}

func (r *SharedPeerRegistry) instanceKey() string {
	return r.prefix + "instance:" + r.instanceID
}

func (r *SharedPeerRegistry) instancesKey() string {
	return r.prefix + "instances"
}
