package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const startTimeout = 2 * time.Minute

// StartPostgres runs a disposable postgres and returns its connection URL and
// a terminate func.
func StartPostgres(ctx context.Context) (string, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	c, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("marketplace"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, err
	}
	terminate := func() { _ = c.Terminate(context.Background()) }

	url, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return "", nil, err
	}
	return url, terminate, nil
}

// StartKafka runs a single-node kafka and returns its broker addresses.
func StartKafka(ctx context.Context) ([]string, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	c, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("marketplace-test"),
	)
	if err != nil {
		return nil, nil, err
	}
	terminate := func() { _ = c.Terminate(context.Background()) }

	brokers, err := c.Brokers(ctx)
	if err != nil {
		terminate()
		return nil, nil, err
	}
	return brokers, terminate, nil
}

// StartRedis runs a disposable redis and returns its connection URL.
func StartRedis(ctx context.Context) (string, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	c, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, err
	}
	terminate := func() { _ = c.Terminate(context.Background()) }

	url, err := c.ConnectionString(ctx)
	if err != nil {
		terminate()
		return "", nil, err
	}
	return url, terminate, nil
}
