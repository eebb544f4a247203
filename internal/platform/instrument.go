package platform

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/leavedesk/internal/pkg/metrics"
)

type instrumented struct {
	next   Platform
	driver string
}

// Instrument wraps p so every call is recorded in the platform call histogram.
func Instrument(p Platform, driver string) Platform {
	return &instrumented{next: p, driver: driver}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	metrics.PlatformCallDuration.WithLabelValues(i.driver, op, outcome(err)).
		Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (i *instrumented) Select(ctx context.Context, table string, filters ...Filter) (Result, error) {
	start := time.Now()
	res, err := i.next.Select(ctx, table, filters...)
	i.observe("select", start, err)
	return res, err
}

func (i *instrumented) Insert(ctx context.Context, table string, row Row) (Result, error) {
	start := time.Now()
	res, err := i.next.Insert(ctx, table, row)
	i.observe("insert", start, err)
	return res, err
}

func (i *instrumented) Update(ctx context.Context, table string, patch Row, filters ...Filter) (Result, error) {
	start := time.Now()
	res, err := i.next.Update(ctx, table, patch, filters...)
	i.observe("update", start, err)
	return res, err
}

func (i *instrumented) Ping(ctx context.Context) error {
	start := time.Now()
	err := i.next.Ping(ctx)
	i.observe("ping", start, err)
	return err
}

func (i *instrumented) SignInWithPassword(ctx context.Context, email, password string) (*AuthUser, error) {
	start := time.Now()
	u, err := i.next.SignInWithPassword(ctx, email, password)
	i.observe("sign_in", start, err)
	return u, err
}

func (i *instrumented) GetUser(ctx context.Context, token string) (*AuthUser, error) {
	start := time.Now()
	u, err := i.next.GetUser(ctx, token)
	i.observe("get_user", start, err)
	return u, err
}

func (i *instrumented) Close() {
	i.next.Close()
}
