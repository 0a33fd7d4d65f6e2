// README: Redis client for the archive lock, month markers and the public rate limiter.
package infra

import (
	"time"

	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
)

func NewRedis(addr, password string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	// Segments only show up when a request carries a New Relic transaction.
	client.AddHook(nrredis.NewHook(nil))
	return client
}
