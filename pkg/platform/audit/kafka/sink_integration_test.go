//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"eduro/pkg/platform/audit"
	auditkafka "eduro/pkg/platform/audit/kafka"
	"eduro/pkg/testutil/containers"
)

func TestSinkProducesEvents(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	const topic = "eduro.audit.test"
	sink, err := auditkafka.New(rp.Brokers, topic, logger)
	require.NoError(t, err)

	event := audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		UserID:    "u1",
		Email:     "amara@example.org",
		Action:    string(audit.EventSignIn),
	}
	require.NoError(t, sink.Append(context.Background(), event))
	sink.Close()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "u1", string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, event.Action, got.Action)
	assert.Equal(t, event.Email, got.Email)
}
