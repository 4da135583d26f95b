package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

func TestNewProducer_FromConfig(t *testing.T) {
	cfg := config.Default().Kafka
	cfg.RequiredAcks = "one"

	p, err := NewProducer(cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "index.merge-ready", p.Topic())
	assert.Equal(t, kafka.RequireOne, p.writer.RequiredAcks)
	assert.Equal(t, cfg.WriteTimeout, p.writer.WriteTimeout)
}

func TestNewProducer_RejectsBadConfig(t *testing.T) {
	cfg := config.Default().Kafka
	cfg.Brokers = nil
	_, err := NewProducer(cfg)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	cfg = config.Default().Kafka
	cfg.RequiredAcks = "quorum"
	_, err = NewProducer(cfg)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}
