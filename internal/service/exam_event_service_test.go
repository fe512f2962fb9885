package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/examguard-api/internal/dto"
)

func receiveEvent(t *testing.T, ch <-chan dto.ExamEvent) dto.ExamEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exam event")
	}
	return dto.ExamEvent{}
}

func requireNoEvent(t *testing.T, ch <-chan dto.ExamEvent) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("unexpected event %s", event.Type)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestExamEventServiceDeliversPerExam(t *testing.T) {
	svc := NewExamEventService(nil, "", nil, testLogger())

	first, cancelFirst := svc.Subscribe(1)
	defer cancelFirst()
	second, cancelSecond := svc.Subscribe(2)
	defer cancelSecond()

	studentID := uint(7)
	svc.PublishExamEvent(context.Background(), 1, dto.ExamEventCheckinRecorded, &studentID, map[string]interface{}{"decision_status": "approved"})

	event := receiveEvent(t, first)
	require.Equal(t, dto.ExamEventCheckinRecorded, event.Type)
	require.Equal(t, uint(1), event.ExamID)
	require.Equal(t, studentID, *event.StudentID)
	require.NotEmpty(t, event.ID)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Data, &data))
	require.Equal(t, "approved", data["decision_status"])

	requireNoEvent(t, second)
}

func TestExamEventServiceCleanupClosesChannel(t *testing.T) {
	svc := NewExamEventService(nil, "", nil, testLogger())

	ch, cancel := svc.Subscribe(3)
	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)

	// publishing after every subscriber left must not panic
	svc.PublishExamEvent(context.Background(), 3, dto.ExamEventSeatingChanged, nil, nil)
}

func TestExamEventServiceSlowSubscriberDoesNotBlock(t *testing.T) {
	svc := NewExamEventService(nil, "", nil, testLogger())
	ch, cancel := svc.Subscribe(4)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < examEventBufferSize*2; i++ {
			svc.PublishExamEvent(context.Background(), 4, dto.ExamEventViolationRecorded, nil, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
	require.Len(t, ch, examEventBufferSize)
}

func TestExamEventServiceFansOutOverRedis(t *testing.T) {
	mini := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	nodeA := NewExamEventService(newClient(), "examguard", nil, testLogger())
	nodeB := NewExamEventService(newClient(), "examguard", nil, testLogger())
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	channel := "examguard:exam-events"
	require.Eventually(t, func() bool {
		return mini.PubSubNumSub(channel)[channel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	local, cancelLocal := nodeA.Subscribe(9)
	defer cancelLocal()
	remote, cancelRemote := nodeB.Subscribe(9)
	defer cancelRemote()

	nodeA.PublishExamEvent(ctx, 9, dto.ExamEventSeatingChanged, nil, map[string]string{"action": "seats_assigned"})

	localEvent := receiveEvent(t, local)
	remoteEvent := receiveEvent(t, remote)
	require.Equal(t, localEvent.ID, remoteEvent.ID)
	require.Equal(t, dto.ExamEventSeatingChanged, remoteEvent.Type)

	// node A ignores its own echo from the channel
	requireNoEvent(t, local)
}
