// Package tracer is the span seam used around agent calls. OTelTracer backs
// it in the server and NoopTracer everywhere else.
package tracer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Span is an active span. End must be called exactly once.
type Span interface {
	// End marks the span failed when err is non-nil and closes it.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute = attribute.KeyValue

func String(key, value string) Attribute { return attribute.String(key, value) }

func Bool(key string, value bool) Attribute { return attribute.Bool(key, value) }

func Int(key string, value int) Attribute { return attribute.Int(key, value) }

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return attribute.Int64(key, value.Milliseconds())
}

const (
	AttrOperation    = "agent.operation"
	AttrHTTPMethod   = "http.method"
	AttrHTTPStatus   = "http.status_code"
	AttrConnectionID = "connection_id"
	AttrCredExID     = "cred_ex_id"
)
