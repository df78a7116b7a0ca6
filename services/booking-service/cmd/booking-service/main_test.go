package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRateLimitClosesRedisClient(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6399")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limit, check, closeLimit := rateLimit(logger)
	if limit == nil || check == nil || check.Name != "redis" {
		t.Fatalf("expected redis limiter with ready check, got %v %+v", limit != nil, check)
	}
	closeLimit()
	if err := check.Check(context.Background()); !errors.Is(err, redis.ErrClosed) {
		t.Fatalf("expected closed client after release, got %v", err)
	}
}

func TestRateLimitWithoutRedis(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("REDIS_ADDR", "")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limit, check, closeLimit := rateLimit(logger)
	if limit == nil || check != nil {
		t.Fatalf("expected in-process limiter without ready check")
	}
	closeLimit()

	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	limit, _, closeLimit = rateLimit(logger)
	if limit != nil {
		t.Fatal("expected no limiter when disabled")
	}
	closeLimit()
}
