// Package natsutil wraps NATS publish, subscribe, and request with JSON
// encoding and OpenTelemetry trace propagation through message headers.
package natsutil

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// msgCarrier exposes nats.Msg headers as an OTel TextMapCarrier.
type msgCarrier nats.Msg

func (c *msgCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *msgCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *msgCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

func encode[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*msgCarrier)(msg))
	return msg, nil
}

// Publish sends v as JSON on subject, carrying the trace context from ctx
// in the message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	msg, err := encode(ctx, subject, v)
	if err != nil {
		return err
	}
	return nc.PublishMsg(msg)
}

// Subscribe delivers JSON messages of type T on subject to handler, with
// the trace context extracted from the message headers. Messages that do
// not decode are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*msgCarrier)(msg))
		handler(ctx, v)
	})
}

// Request sends req as JSON on subject and decodes the JSON reply into
// Resp, waiting up to nats.DefaultTimeout.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	msg, err := encode(ctx, subject, req)
	if err != nil {
		return zero, err
	}
	reply, err := nc.RequestMsg(msg, nats.DefaultTimeout)
	if err != nil {
		return zero, err
	}
	var resp Resp
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		return zero, err
	}
	return resp, nil
}
