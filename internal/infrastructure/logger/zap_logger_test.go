package logger_test

import (
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wyuan/futures_settle_arb/internal/infrastructure/logger"
	"go.uber.org/zap"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	log, err := logger.NewLogger("not-a-level")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !log.Core().Enabled(zap.InfoLevel) {
		t.Error("Unknown level should fall back to info")
	}
	if log.Core().Enabled(zap.DebugLevel) {
		t.Error("Fallback level should not enable debug")
	}
}

// The engine writes its audit trail through the stdlib logger; main routes
// that output into the file logger. This covers the whole path.
func TestFileLoggerCarriesAuditTrail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	auditLog, err := logger.NewFileLogger(path, "debug")
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	std := stdlog.New(zap.NewStdLog(auditLog).Writer(), "", 0)
	std.Printf("AUDIT: IC0 level 1 opened, qty 1 at 5439.00")
	auditLog.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "AUDIT: IC0 level 1 opened") {
		t.Errorf("Audit line missing from file: %s", data)
	}
}
