package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

func TestNewPostgresRequiresDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, pg)
}

func TestNewPostgresRejectsMalformedDSN(t *testing.T) {
	cfg := config.PostgresConfig{DSN: "postgres://bad dsn with spaces%%"}
	pg, err := NewPostgres(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, pg)
}

func TestPostgresNilReceiverPing(t *testing.T) {
	var pg *Postgres
	assert.Error(t, pg.Ping(context.Background()))
	assert.Nil(t, pg.PoolHandle())
	pg.Close()
}
