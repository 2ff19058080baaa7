package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits a structured JSON log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	emit(entry)
}

// Info, Warn and Error write a single JSON line tagged with the level.
func Info(msg string, fields map[string]any) { logAt("info", msg, fields) }
func Warn(msg string, fields map[string]any) { logAt("warn", msg, fields) }
func Error(msg string, fields map[string]any) { logAt("error", msg, fields) }

// Fault records a failure in a subsystem that must not surface to callers,
// e.g. an audit sink that could not persist a record.
func Fault(component string, err error, fields map[string]any) {
	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["component"] = component
	if err != nil {
		entry["error"] = err.Error()
	}
	logAt("fault", "subsystem fault", entry)
}

func logAt(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg
	emit(entry)
}

func emit(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
