package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-speaker/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	submissionCounter, _ = meter.Int64Counter("ema_speaker.submissions",
		metric.WithDescription("Transcript fragments submitted"))
	turnCounter, _ = meter.Int64Counter("ema_speaker.turns",
		metric.WithDescription("Finished turns by outcome"))
	interruptCounter, _ = meter.Int64Counter("ema_speaker.interrupts",
		metric.WithDescription("Interrupt requests by result"))
	turnDuration, _ = meter.Float64Histogram("ema_speaker.turn.duration",
		metric.WithDescription("Time from drain to the end of a turn"),
		metric.WithUnit("s"))
)
