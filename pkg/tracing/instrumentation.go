package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Domain span attributes
const (
	UserIDKey       = attribute.Key("user.id")
	RideIDKey       = attribute.Key("ride.id")
	DriverIDKey     = attribute.Key("driver.id")
	RideStatusKey   = attribute.Key("ride.status")
	FareAmountKey   = attribute.Key("fare.amount")
	DistanceKey     = attribute.Key("distance.miles")
	DurationKey     = attribute.Key("duration.minutes")
	EventSubjectKey = attribute.Key("messaging.destination")
)

// TracePublish wraps publishing one event to the bus in a producer span.
func TracePublish(ctx context.Context, tracerName, subject string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("publish %s", subject),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			EventSubjectKey.String(subject),
		),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// RideAttributes builds the common attribute set for a ride operation.
func RideAttributes(rideID, userID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if rideID != "" {
		attrs = append(attrs, RideIDKey.String(rideID))
	}
	if userID != "" {
		attrs = append(attrs, UserIDKey.String(userID))
	}
	return attrs
}
