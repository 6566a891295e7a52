package kafka

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncProducer_Publish(t *testing.T) {
	mp := mocks.NewSyncProducer(t, SaramaConfig())
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		assert.Equal(t, `{"seq":1}`, string(val))
		return nil
	})
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := WrapSyncProducer(mp, "events")
	require.NoError(t, p.Publish(context.Background(), []byte("1"), []byte(`{"seq":1}`)))

	err := p.Publish(context.Background(), []byte("2"), []byte(`{"seq":2}`))
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, p.Close())
}

func TestSyncProducer_CanceledContext(t *testing.T) {
	mp := mocks.NewSyncProducer(t, SaramaConfig())
	p := WrapSyncProducer(mp, "events")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Publish(ctx, nil, []byte("x")), context.Canceled)
	require.NoError(t, p.Close())
}
