package mqttpub

import (
	"testing"

	"codeberg.org/mutker/airco2ctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrInvalidBroker))

	err = Config{Broker: "tcp://localhost:1883"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrInvalidTopic))

	assert.NoError(t, Config{Broker: "tcp://localhost:1883", Topic: "home/co2"}.Validate())
}
