package entitystore

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"
)

const (
	metricQueryDuration  = "entitystore_query_duration_seconds"
	metricRowsFetched    = "entitystore_rows_fetched"
	metricCommitDuration = "entitystore_commit_duration_seconds"
	metricErrors         = "entitystore_errors_total"

	spanNamePrefix            = "entitystore."
	spanAttrOperation         = "operation"
	spanAttrTaskCount         = "task_count"
	spanAttrRequireTotalCount = "require_total_count"
	spanAttrRowCount          = "row_count"
	spanAttrDurationMS        = "duration_ms"
	spanAttrErrorType         = "error_type"
	spanAttrEntityType        = "entity_type"
	spanAttrAutoCommit        = "auto_commit"

	statusSuccess = "success"
	statusError   = "error"

	operationEnumerate = "enumerate"
	operationCount     = "count"
	operationByKey     = "by_key"
	operationInsert    = "insert"
	operationUpdate    = "update"
	operationRemove    = "remove"

	logMsgOperation   = "entitystore operation: "
	logMsgFailed      = "entitystore operation failed: "
	logAttrError      = "error"
	logAttrErrorType  = "error_type"
	logAttrRowCount   = "row_count"
	logAttrDurationMS = "duration_ms"

	errorTypeNotFound          = "not_found"
	errorTypeTotalCountMissing = "total_count_missing"
	errorTypeCanceled          = "canceled"
	errorTypeTimeout           = "timeout"
	errorTypeRemote            = "remote"
)

// instrumentation fans an operation's lifecycle out to the configured observability collaborators.
type instrumentation struct {
	obs Observability
}

func newInstrumentation(obs Observability) instrumentation {
	return instrumentation{obs: obs}
}

// operationObserver encapsulates span, metrics, and logging for a single operation.
type operationObserver struct {
	inst      instrumentation
	ctx       context.Context
	operation string
	span      SpanContext
	start     time.Time
}

// start opens a span for the operation and returns the observer with the span-carrying context.
func (i instrumentation) start(
	ctx context.Context,
	operation string,
	attrs map[string]string,
) (*operationObserver, context.Context) {

	spanAttrs := map[string]string{spanAttrOperation: operation}
	for key, value := range attrs {
		spanAttrs[key] = value
	}

	var span SpanContext
	if i.obs.TracingCollector != nil {
		ctx, span = i.obs.TracingCollector.StartSpan(ctx, spanNamePrefix+operation, spanAttrs)
	}

	return &operationObserver{
		inst:      i,
		ctx:       ctx,
		operation: operation,
		span:      span,
		start:     time.Now(),
	}, ctx
}

// finishSuccess records a successful operation. A negative rowCount is not reported.
func (o *operationObserver) finishSuccess(rowCount int) {
	duration := time.Since(o.start)

	o.recordDuration(duration, statusSuccess)

	if rowCount >= 0 {
		o.recordValue(metricRowsFetched, float64(rowCount), statusSuccess)
	}

	attrs := map[string]string{spanAttrDurationMS: formatMilliseconds(duration)}
	if rowCount >= 0 {
		attrs[spanAttrRowCount] = strconv.Itoa(rowCount)
	}

	o.finishSpan(statusSuccess, attrs)

	args := []any{logAttrDurationMS, toMilliseconds(duration)}
	if rowCount >= 0 {
		args = append(args, logAttrRowCount, rowCount)
	}

	if o.inst.obs.Logger != nil {
		o.inst.obs.Logger.Info(logMsgOperation+o.operation, args...)
	}

	if o.inst.obs.ContextualLogger != nil {
		o.inst.obs.ContextualLogger.InfoContext(o.ctx, logMsgOperation+o.operation, args...)
	}
}

// finishError records a failed operation.
func (o *operationObserver) finishError(err error) {
	duration := time.Since(o.start)
	errorType := classifyError(err)

	o.recordDuration(duration, statusError)
	o.incrementErrors(errorType)
	o.finishSpan(statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: formatMilliseconds(duration),
	})

	args := []any{logAttrError, err.Error(), logAttrErrorType, errorType, logAttrDurationMS, toMilliseconds(duration)}

	if o.inst.obs.Logger != nil {
		o.inst.obs.Logger.Error(logMsgFailed+o.operation, args...)
	}

	if o.inst.obs.ContextualLogger != nil {
		o.inst.obs.ContextualLogger.ErrorContext(o.ctx, logMsgFailed+o.operation, args...)
	}
}

func (o *operationObserver) finishSpan(status string, attrs map[string]string) {
	if o.span == nil || o.inst.obs.TracingCollector == nil {
		return
	}

	o.span.SetStatus(status)
	o.inst.obs.TracingCollector.FinishSpan(o.span, status, attrs)
}

func (o *operationObserver) recordDuration(duration time.Duration, status string) {
	collector := o.inst.obs.MetricsCollector
	if collector == nil {
		return
	}

	metricName := metricQueryDuration
	if isCommitOperation(o.operation) {
		metricName = metricCommitDuration
	}

	labels := map[string]string{spanAttrOperation: o.operation, "status": status}

	if contextual, ok := collector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(o.ctx, metricName, duration, labels)
		return
	}

	collector.RecordDuration(metricName, duration, labels)
}

func (o *operationObserver) recordValue(metricName string, value float64, status string) {
	collector := o.inst.obs.MetricsCollector
	if collector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: o.operation, "status": status}

	if contextual, ok := collector.(ContextualMetricsCollector); ok {
		contextual.RecordValueContext(o.ctx, metricName, value, labels)
		return
	}

	collector.RecordValue(metricName, value, labels)
}

func (o *operationObserver) incrementErrors(errorType string) {
	collector := o.inst.obs.MetricsCollector
	if collector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: o.operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextual, ok := collector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(o.ctx, metricErrors, labels)
		return
	}

	collector.IncrementCounter(metricErrors, labels)
}

func isCommitOperation(operation string) bool {
	return operation == operationInsert || operation == operationUpdate || operation == operationRemove
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, ErrEntityNotFound):
		return errorTypeNotFound
	case errors.Is(err, ErrTotalCountMissing):
		return errorTypeTotalCountMissing
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeTimeout
	default:
		return errorTypeRemote
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMilliseconds(d time.Duration) string {
	return strconv.FormatFloat(toMilliseconds(d), 'f', 2, 64)
}
