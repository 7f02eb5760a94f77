package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)
	defer SetLevel("info")

	SetLevel("info")
	Debugf("debug message")
	assert.Empty(t, buf.String())

	Infof("info message")
	assert.Contains(t, buf.String(), "info message")

	buf.Reset()
	SetLevel("debug")
	Debugf("now visible")
	assert.Contains(t, buf.String(), "now visible")

	// Unknown names leave the level untouched.
	buf.Reset()
	SetLevel("shouting")
	Debugf("still visible")
	assert.Contains(t, buf.String(), "still visible")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)

	WithFields(logrus.Fields{"queue": 3, "family": "ipv4"}).Info("event drained")

	out := buf.String()
	assert.Contains(t, out, "event drained")
	assert.Contains(t, out, "queue=3")
	assert.Contains(t, out, "family=ipv4")
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, EnableFileLogging(dir, "xdpacer.log", 10, 3, 7))
	defer logger.SetOutput(os.Stdout)

	Infof("file log test message")

	content, err := os.ReadFile(filepath.Join(dir, "xdpacer.log"))
	assert.NoError(t, err)
	assert.Contains(t, string(content), "file log test message")
}
