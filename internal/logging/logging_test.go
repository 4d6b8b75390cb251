package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(&buf, "debug", "text")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("symbol", "BTCUSDT").Info("Rows inserted")
	assert.Contains(t, buf.String(), "symbol=BTCUSDT")
	assert.Contains(t, buf.String(), `msg="Rows inserted"`)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(&buf, "info", "json")
	require.NoError(t, err)

	logger.WithField("timeframe", 3600).Debug("hidden")
	assert.Empty(t, buf.String())

	logger.WithField("timeframe", 3600).Info("planned")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "planned", entry["msg"])
	assert.Equal(t, float64(3600), entry["timeframe"])
}

func TestNewRejectsUnknown(t *testing.T) {
	_, err := New("loud", "text")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
