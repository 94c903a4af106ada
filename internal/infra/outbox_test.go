package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	records []domain.OutboxRecord
	marked  []int64
}

func (f *fakeOutbox) FetchUnpublished(_ context.Context, limit int) ([]domain.OutboxRecord, error) {
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []int64) error {
	f.marked = append(f.marked, ids...)
	return nil
}

type sentMessage struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	sent   []sentMessage
	failAt int
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	if p.failAt > 0 && len(p.sent)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, sentMessage{topic, string(key), value})
	return nil
}

func outboxRecord(id int64, evt domain.OutboxDraft) domain.OutboxRecord {
	return domain.OutboxRecord{ID: id, OutboxDraft: evt}
}

func testRecords() []domain.OutboxRecord {
	started := time.Now().Add(-20 * time.Second)
	done := time.Now()
	s := &domain.AdSession{
		ID:          uuid.New(),
		UserID:      "user-1",
		Placement:   domain.PlacementBoxOpening,
		State:       domain.SessionCompleted,
		StartedAt:   &started,
		CompletedAt: &done,
	}
	return []domain.OutboxRecord{
		outboxRecord(1, domain.NewSessionFinishedEvent(s)),
		outboxRecord(2, domain.NewRewardGrantedEvent("user-1", s.ID, s.Placement, domain.NewReward(domain.RewardCoins, 50))),
	}
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	src := &fakeOutbox{records: testRecords()}
	pub := &fakePublisher{}
	p := NewOutboxPoller(src, pub, time.Second, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, src.marked)

	require.Len(t, pub.sent, 2)
	assert.Equal(t, "adrewards.ads.session.completed", pub.sent[0].topic)
	assert.Equal(t, "adrewards.ads.reward.granted", pub.sent[1].topic)
	assert.Equal(t, "user-1", pub.sent[0].key)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.sent[1].value, &envelope))
	assert.Equal(t, "ads.reward.granted", envelope["event_type"])
	assert.Equal(t, "reward", envelope["aggregate_type"])
}

func TestOutboxPoller_StopsAtFirstFailure(t *testing.T) {
	src := &fakeOutbox{records: testRecords()}
	pub := &fakePublisher{failAt: 2}
	p := NewOutboxPoller(src, pub, time.Second, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, src.marked)
}

func TestOutboxPoller_EmptyBatch(t *testing.T) {
	src := &fakeOutbox{}
	p := NewOutboxPoller(src, &fakePublisher{}, 0, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, src.marked)
}

func TestKafkaProducer_DisabledIsNoop(t *testing.T) {
	p := NewKafkaProducer("", true, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Publish(context.Background(), "t", nil, []byte("x")))
	assert.NoError(t, p.Close())
}
