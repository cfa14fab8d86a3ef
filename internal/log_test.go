package internal

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})
	return &buf
}

func TestParseLogLevel(t *testing.T) {
	level, ok := ParseLogLevel(" debug ")
	assert.True(t, ok)
	assert.Equal(t, LogLevelDebug, level)

	_, ok = ParseLogLevel("TRACE")
	assert.False(t, ok)
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buf := captureLog(t)
	logger := NewLogger("Loader", LogLevelInfo)

	logger.Debugf("cache hit for %s", "a.csv")
	logger.Infof("fetched %s", "a.csv")

	assert.Equal(t, "[Loader] fetched a.csv\n", buf.String())
}

func TestComponentLoggerReadsEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	assert.Equal(t, LogLevelWarn, NewComponentLogger("Loader").Level())

	t.Setenv("LOG_LEVEL", "verbose")
	assert.Equal(t, LogLevelInfo, NewComponentLogger("Loader").Level())
}
