package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base *zap.Logger
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// Init 로거 초기화
// development: 사람이 읽는 console 포맷 + Debug 레벨
// 그 외: JSON (access log 와 같은 수집 파이프라인으로 보냄)
func Init(env string) error {
	level := zapcore.InfoLevel
	var enc zapcore.Encoder
	if env == "development" {
		level = zapcore.DebugLevel
		cfg := encoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(encoderConfig())
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.Set(v); err != nil {
			return err
		}
	}

	SetCore(zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level))
	return nil
}

// SetCore swaps the output (tests use zaptest/observer).
func SetCore(core zapcore.Core) {
	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	mu.Lock()
	base = l
	mu.Unlock()
}

// GetLogger 이름이 지정된 로거 반환
func GetLogger(name string) *zap.SugaredLogger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l == nil {
		_ = Init("")
		mu.RLock()
		l = base
		mu.RUnlock()
	}
	return l.Named(name).Sugar()
}

// ForSession 세션 id 가 붙은 로거
func ForSession(name, sessionID string) *zap.SugaredLogger {
	return GetLogger(name).With("session_id", sessionID)
}

// Sync 로거 버퍼 플러시
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
