package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"trace": logrus.TraceLevel,
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"DEBUG": logrus.DebugLevel,
		"weird": logrus.InfoLevel,
		"":      logrus.InfoLevel,
	}
	for in, want := range cases {
		got, on := ParseLevel(in)
		assert.True(t, on, in)
		assert.Equal(t, want, got, in)
	}

	_, on := ParseLevel("off")
	assert.False(t, on)
}

func TestNew_Stdout(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New("warn", "stdout", WithStdout(&buf))
	require.NoError(t, err)
	defer closer.Close()

	log.Info("hidden")
	log.WithField("client_ip", "203.0.113.5").Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "client_ip=203.0.113.5")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pw.log")
	log, closer, err := New("info", "file", WithFilePath(path))
	require.NoError(t, err)

	log.Info("first")
	require.NoError(t, closer.Close())

	log, closer, err = New("info", "file", WithFilePath(path))
	require.NoError(t, err)
	log.Info("second")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second", "file is appended, not truncated")
}

func TestNew_Off(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New("off", "stdout", WithStdout(&buf))
	require.NoError(t, err)

	log.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestNew_FileError(t *testing.T) {
	_, _, err := New("info", "file", WithFilePath(filepath.Join(t.TempDir(), "missing", "pw.log")))
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.Equal(t, io.Discard, l.Out)
	assert.False(t, l.IsLevelEnabled(logrus.ErrorLevel))
}
