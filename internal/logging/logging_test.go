package logging

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWritesTimestampedPlainLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Error("Oops... dropping message", "bytes", 4)
	log.Debug("hidden")

	line := buf.String()
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} ERR Oops\.\.\. dropping message`), line)
	assert.Contains(t, line, "bytes=4")
	assert.NotContains(t, line, "\x1b[", "no color codes for non-terminal writers")
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Debug("consumer stopping", "received", 3)

	assert.Contains(t, buf.String(), "DBG consumer stopping received=3")
}
