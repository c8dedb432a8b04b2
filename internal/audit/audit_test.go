package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	got []Summary
	err error
}

func (m *memStore) AppendAudit(_ context.Context, s Summary) error {
	if m.err != nil {
		return m.err
	}
	m.got = append(m.got, s)
	return nil
}

func sample() Summary {
	return Summary{
		Source:      "main-shop",
		Endpoint:    "https://shop.example.com/products.json",
		OperationID: "op-1",
		FetchedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Created:     2,
		Updated:     1,
		Unchanged:   7,
	}
}

func TestKafkaSink_PublishesJSONKeyedBySource(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "main-shop" {
			return errors.New("unexpected key " + string(key))
		}
		value, _ := msg.Value.Encode()
		var s Summary
		if err := json.Unmarshal(value, &s); err != nil {
			return err
		}
		if s.Created != 2 || s.Unchanged != 7 {
			return errors.New("unexpected payload")
		}
		return nil
	})

	sink := NewKafkaSinkWithProducer(producer, "storesync.audit")
	require.NoError(t, sink.Record(context.Background(), sample()))
}

func TestKafkaSink_ReturnsProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := NewKafkaSinkWithProducer(producer, "t").Record(context.Background(), sample())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
}

func TestMulti_ContinuesAfterFailure(t *testing.T) {
	broken := &memStore{err: errors.New("db down")}
	ok := &memStore{}

	err := Multi{NewStoreSink(broken), nil, NewStoreSink(ok)}.Record(context.Background(), sample())
	require.Error(t, err)
	assert.Len(t, ok.got, 1)
	assert.Equal(t, "op-1", ok.got[0].OperationID)

	assert.NoError(t, Nop.Record(context.Background(), sample()))
}
