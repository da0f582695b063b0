//go:build integration

package publisher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"bonifica/internal/audit"
	"bonifica/internal/audit/publisher"
	"bonifica/pkg/testutil/containers"
)

func TestKafkaPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redpanda := containers.GetManager().GetRedpanda(t)
	topic := "bonifica.audit." + uuid.NewString()

	producer := redpanda.NewClient(t, kgo.AllowAutoTopicCreation())
	defer producer.Close()
	p := publisher.New(producer, topic)

	entityID := uuid.NewString()
	events := []audit.Event{
		{Action: audit.ActionGroupCreated, ActorRole: "org_manager", EntityType: "delivery_group", EntityID: entityID},
		{Action: audit.ActionGroupUpdated, ActorRole: "org_manager", EntityType: "delivery_group", EntityID: entityID},
		{Action: audit.ActionSubsidyRecorded, ActorRole: "org_manager", EntityType: "subsidy_entry", EntityID: uuid.NewString()},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, event := range events {
		require.NoError(t, p.Emit(ctx, event))
	}

	consumer := redpanda.NewClient(t,
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	defer consumer.Close()

	var consumed []audit.Event
	var trail []audit.Action
	for len(consumed) < len(events) {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, fetches.Err())
		fetches.EachRecord(func(record *kgo.Record) {
			var event audit.Event
			require.NoError(t, json.Unmarshal(record.Value, &event))
			consumed = append(consumed, event)
			if string(record.Key) == entityID {
				trail = append(trail, event.Action)
			}
		})
	}

	require.Len(t, consumed, 3)
	assert.Equal(t, []audit.Action{audit.ActionGroupCreated, audit.ActionGroupUpdated}, trail,
		"one entity's trail is keyed together and stays ordered")
	for _, event := range consumed {
		assert.False(t, event.Timestamp.IsZero(), "publisher stamps missing timestamps")
	}
}
