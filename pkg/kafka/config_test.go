package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSaramaConfigDefaults(t *testing.T) {
	c := &Config{}
	conf, err := c.ToSaramaConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, c.GetBrokers())
	assert.Equal(t, "tabletap", conf.ClientID)
	assert.Equal(t, sarama.WaitForAll, conf.Producer.RequiredAcks)
	assert.Equal(t, 1, conf.Producer.Retry.Max)
	assert.True(t, conf.Producer.Return.Successes)
	assert.Equal(t, sarama.OffsetOldest, conf.Consumer.Offsets.Initial)
	assert.False(t, conf.Net.SASL.Enable)
}

func TestToSaramaConfigSASL(t *testing.T) {
	tests := []struct {
		algorithm string
		mechanism sarama.SASLMechanism
	}{
		{"sha256", sarama.SASLTypeSCRAMSHA256},
		{"sha512", sarama.SASLTypeSCRAMSHA512},
		{"plain", sarama.SASLTypePlaintext},
		{"", sarama.SASLTypePlaintext},
	}
	for _, tt := range tests {
		c := &Config{SASL: SASL{Enable: true, Username: "user", Password: "pass", Algorithm: tt.algorithm}}
		conf, err := c.ToSaramaConfig()
		require.NoError(t, err, tt.algorithm)
		assert.True(t, conf.Net.SASL.Enable)
		assert.Equal(t, tt.mechanism, conf.Net.SASL.Mechanism, tt.algorithm)
	}

	c := &Config{SASL: SASL{Enable: true, Algorithm: "md5"}}
	_, err := c.ToSaramaConfig()
	assert.ErrorContains(t, err, "invalid SASL algorithm")
}

func TestToSaramaConfigBadVersion(t *testing.T) {
	c := &Config{Version: "not-a-version"}
	_, err := c.ToSaramaConfig()
	assert.Error(t, err)
}
