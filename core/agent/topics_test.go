package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicLayout(t *testing.T) {
	assert.Equal(t, "gpiolink/button/2/state", ButtonStateTopic("gpiolink", 2))
	assert.Equal(t, "gpiolink/button/0/status", ButtonStatusTopic("gpiolink", 0))
	assert.Equal(t, "gpiolink/led/+/set", LEDSetFilter("gpiolink"))
}

func TestLEDIndexFromTopic(t *testing.T) {
	idx, err := LEDIndexFromTopic("gpiolink/led/3/set")
	assert.NoError(t, err)
	assert.Equal(t, 3, idx)

	idx, err = LEDIndexFromTopic("deep/prefix/led/12/set")
	assert.NoError(t, err)
	assert.Equal(t, 12, idx)

	_, err = LEDIndexFromTopic("gpiolink/led/x/set")
	assert.Error(t, err)
	_, err = LEDIndexFromTopic("gpiolink/button/1/state")
	assert.Error(t, err)
	_, err = LEDIndexFromTopic("set")
	assert.Error(t, err)
}
