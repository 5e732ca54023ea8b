package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/queue"
	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestEnqueueDequeue_FIFO(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	q := queue.NewRedisQueue(setupRedis(t), "")
	ctx := context.Background()

	example := 2
	first := models.Task{JobUID: uuid.New()}
	second := models.Task{JobUID: uuid.New(), ExampleNumber: &example}
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.JobUID, got.JobUID)
	assert.Nil(t, got.ExampleNumber)

	got, ok, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.JobUID, got.JobUID)
	require.NotNil(t, got.ExampleNumber)
	assert.Equal(t, 2, *got.ExampleNumber)
}

func TestDequeue_Empty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	q := queue.NewRedisQueue(setupRedis(t), "tasks:empty")

	_, ok, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDequeue_Corrupt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := setupRedis(t)
	q := queue.NewRedisQueue(client, "tasks:corrupt")
	ctx := context.Background()
	require.NoError(t, client.LPush(ctx, "tasks:corrupt", "not json").Err())

	_, ok, err := q.Dequeue(ctx, time.Second)
	assert.Error(t, err)
	assert.False(t, ok)

	left, err := client.LLen(ctx, queue.ProcessingKey("tasks:corrupt", queue.DefaultConsumer)).Result()
	require.NoError(t, err)
	assert.Zero(t, left, "corrupt payloads are not kept for redelivery")
}

func TestAck_RemovesFromProcessing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := setupRedis(t)
	q := queue.NewRedisQueue(client, "tasks:ack", queue.WithConsumer("worker-0"))
	ctx := context.Background()
	processing := queue.ProcessingKey("tasks:ack", "worker-0")

	example := 1
	require.NoError(t, q.Enqueue(ctx, models.Task{JobUID: uuid.New(), ExampleNumber: &example}))
	task, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	inFlight, err := client.LLen(ctx, processing).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), inFlight)

	require.NoError(t, q.Ack(ctx, task))
	inFlight, err = client.LLen(ctx, processing).Result()
	require.NoError(t, err)
	assert.Zero(t, inFlight)
}

func TestRecover_RedeliversUnacknowledged(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := setupRedis(t)
	ctx := context.Background()
	crashed := queue.NewRedisQueue(client, "tasks:recover", queue.WithConsumer("worker-0"))

	stuck := models.Task{JobUID: uuid.New()}
	waiting := models.Task{JobUID: uuid.New()}
	require.NoError(t, crashed.Enqueue(ctx, stuck))
	require.NoError(t, crashed.Enqueue(ctx, waiting))
	_, ok, err := crashed.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Another consumer's in-flight tasks are left alone.
	other := queue.NewRedisQueue(client, "tasks:recover", queue.WithConsumer("worker-1"))
	n, err := other.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	restarted := queue.NewRedisQueue(client, "tasks:recover", queue.WithConsumer("worker-0"))
	n, err = restarted.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok, err := restarted.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stuck.JobUID, got.JobUID, "recovered tasks run before waiting ones")
}
