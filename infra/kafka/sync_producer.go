package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
)

// SyncProducer publishes through a sarama SyncProducer.
type SyncProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// SaramaConfig is the producer configuration used by NewSyncProducer.
func SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func NewSyncProducer(brokers []string, topic string) (*SyncProducer, error) {
	p, err := sarama.NewSyncProducer(brokers, SaramaConfig())
	if err != nil {
		return nil, errors.Wrap(err, "sarama: new sync producer")
	}
	return WrapSyncProducer(p, topic), nil
}

// WrapSyncProducer adapts an existing producer, e.g. a sarama mock.
func WrapSyncProducer(p sarama.SyncProducer, topic string) *SyncProducer {
	return &SyncProducer{producer: p, topic: topic}
}

// Publish sends one message. sarama has no context support; ctx is only
// checked before sending.
func (p *SyncProducer) Publish(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return errors.Wrapf(err, "sarama: publish to %s", p.topic)
}

func (p *SyncProducer) Close() error {
	return p.producer.Close()
}
