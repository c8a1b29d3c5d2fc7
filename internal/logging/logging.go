// Package logging writes structured indexing and query logs to a file
// under the data directory. Logging failures never interrupt the
// operation being logged.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Logger struct {
	mu   sync.Mutex
	file *os.File
}

type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
	Details   map[string]interface{}
}

var globalLogger *Logger
var loggerMu sync.Mutex

// Init opens a timestamped log file under dir and installs the logger
// as the process-wide default.
func Init(dir string) (*Logger, error) {
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	logFile := filepath.Join(logDir, fmt.Sprintf("skillsearch-%s.log", timestamp))

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &Logger{file: file}

	loggerMu.Lock()
	globalLogger = logger
	loggerMu.Unlock()

	logger.log("INFO", "Logger initialized", map[string]interface{}{
		"log_file": logFile,
	})

	return logger, nil
}

func (l *Logger) log(level string, message string, details map[string]interface{}) {
	if l == nil {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Details:   details,
	}

	logLine := fmt.Sprintf("[%s] %s: %s", entry.Timestamp.Format("2006-01-02 15:04:05.000"), entry.Level, entry.Message)
	for k, v := range entry.Details {
		logLine += fmt.Sprintf(" %s=%v", k, v)
	}
	logLine += "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	l.file.WriteString(logLine)
}

func (l *Logger) Info(message string, details map[string]interface{}) {
	l.log("INFO", message, details)
}

func (l *Logger) Warn(message string, details map[string]interface{}) {
	l.log("WARN", message, details)
}

func (l *Logger) Error(message string, details map[string]interface{}) {
	l.log("ERROR", message, details)
}

func (l *Logger) Debug(message string, details map[string]interface{}) {
	l.log("DEBUG", message, details)
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.Info("Logger closing", nil)
	return l.file.Close()
}

func GetGlobalLogger() *Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return globalLogger
}

func LogInfo(message string, details map[string]interface{}) {
	if logger := GetGlobalLogger(); logger != nil {
		logger.Info(message, details)
	}
}

func LogWarn(message string, details map[string]interface{}) {
	if logger := GetGlobalLogger(); logger != nil {
		logger.Warn(message, details)
	}
}

func LogError(message string, details map[string]interface{}) {
	if logger := GetGlobalLogger(); logger != nil {
		logger.Error(message, details)
	}
}

func LogDebug(message string, details map[string]interface{}) {
	if logger := GetGlobalLogger(); logger != nil {
		logger.Debug(message, details)
	}
}
