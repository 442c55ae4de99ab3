package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wonny/exitlab/internal/exit"
	"github.com/wonny/exitlab/pkg/config"
	"github.com/wonny/exitlab/pkg/redis"
)

func exerciseStore(t *testing.T, store StateStore) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, AuxState{}, empty)

	want := AuxState{
		Trail:          exit.Trail{Active: true, Anchor: 1.1052, Stop: 1.1017},
		BreakevenFired: true,
	}
	require.NoError(t, store.Save(ctx, "pos-1", want))

	got, err := store.Load(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Delete(ctx, "pos-1"))
	got, err = store.Load(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, AuxState{}, got)
}

func TestMemoryStateStore(t *testing.T) {
	exerciseStore(t, NewMemoryStateStore())
}

func TestRedisStateStore_Disabled(t *testing.T) {
	client, err := redis.New(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	store := NewRedisStateStore(client)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "pos-1", AuxState{BreakevenFired: true}))
	got, err := store.Load(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, AuxState{}, got, "disabled redis remembers nothing")
}

func TestRedisStateStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := redis.New(ctx, config.RedisConfig{Host: host, Port: port.Port(), Enabled: true})
	require.NoError(t, err)
	defer client.Close()

	exerciseStore(t, NewRedisStateStore(client))
}
