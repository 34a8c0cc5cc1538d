package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"go.uber.org/zap"
)

// ZapLogger writes service operation callbacks as structured zap entries.
type ZapLogger struct {
	logger *zap.Logger
}

// New returns a ZapLogger. A nil logger falls back to zap.NewNop.
func New(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger.Named("operation")}
}

// LogOperation implements tontine.OperationLogger.
func (zapLogger *ZapLogger) LogOperation(ctx context.Context, entry tontine.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.UserID != 0 {
		fields = append(fields, zap.Int64("user_id", entry.UserID.Int64()))
	}
	if entry.GroupID != 0 {
		fields = append(fields, zap.Int64("group_id", entry.GroupID.Int64()))
	}
	if entry.TargetID != 0 {
		fields = append(fields, zap.Int64("target_id", entry.TargetID.Int64()))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount.Int64()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		zapLogger.logger.Warn("operation failed", fields...)
		return
	}
	zapLogger.logger.Info("operation", fields...)
}
