package logger

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

var linePattern = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] \[(TRACE|DEBUG|INFO|WARN|ERROR)\] `)

func TestConsoleLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLogger(&buf, "info")

	log.Infof("processing story %s", "us-1")

	line := buf.String()
	assert.Regexp(t, linePattern, line)
	assert.Contains(t, line, "[INFO] processing story us-1")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLogger(&buf, "warn")

	log.Tracef("trace message")
	log.Debugf("debug message")
	log.Infof("info message")
	log.Warnf("warn message")
	log.Errorf("error message")

	output := buf.String()
	assert.NotContains(t, output, "trace message")
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestConsoleLoggerTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLogger(&buf, "trace")

	log.Tracef("very detailed")
	assert.Contains(t, buf.String(), "[TRACE] very detailed")
}

func TestConsoleLoggerInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLogger(&buf, "shouty")

	log.Debugf("hidden")
	log.Infof("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestConsoleLoggerNilWriter(t *testing.T) {
	log := NewConsoleLogger(nil, "info")
	assert.NotPanics(t, func() {
		log.Infof("goes nowhere")
	})
}

func TestConsoleLoggerConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLogger(&buf, "info")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			log.Infof("message %d", n)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.Regexp(t, linePattern, line)
	}
}

func TestNoOpLogger(t *testing.T) {
	log := &NoOpLogger{}
	assert.NotPanics(t, func() {
		log.Tracef("a")
		log.Debugf("b")
		log.Infof("c")
		log.Warnf("d")
		log.Errorf("e")
	})
}
