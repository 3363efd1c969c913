package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBuild_FieldNamesAndStaticFields(t *testing.T) {
	var buf bytes.Buffer
	l := Build(Config{Level: "debug", Service: "region-resolver", Component: "server"}, &buf)
	l.Info().Msg("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	for _, k := range []string{"timestamp", "level", "msg", "service", "component"} {
		if _, ok := rec[k]; !ok {
			t.Fatalf("missing field %q in %v", k, rec)
		}
	}
	if rec["msg"] != "hello" || rec["service"] != "region-resolver" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestFromContext_AddsFields(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	parent := zerolog.New(&buf)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithComponent(ctx, "resolver")
	ctx = WithTier(ctx, "subl2")
	FromContext(ctx, &parent).Info().Msg("x")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"component":"resolver"`, `"tier":"subl2"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
	if RequestID(ctx) != "req-1" {
		t.Fatalf("RequestID=%q", RequestID(ctx))
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	a := RequestID(WithRequestID(context.Background(), ""))
	b := RequestID(WithRequestID(context.Background(), ""))
	if a == "" || a == b {
		t.Fatalf("expected distinct generated ids, got %q %q", a, b)
	}
	if len(a) != 20 {
		t.Fatalf("xid string should have 20 chars, got %d", len(a))
	}
}

func TestNewSlog_BridgesLevelsAndContext(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	sl := NewSlog(&zl).With("svc", "x")

	ctx := WithRequestID(context.Background(), "abc")
	sl.WarnContext(ctx, "degraded", "tier", "subl1", "n", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["level"] != "warn" || rec["request_id"] != "abc" || rec["svc"] != "x" || rec["n"] != float64(3) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewSlog_RespectsGlobalLevelAndGroups(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	sl := NewSlog(&zl)

	sl.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level, got %s", buf.String())
	}

	sl.WithGroup("fetch").Warn("slow", "url", "u", "err", errors.New("boom"))
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["fetch.url"] != "u" || rec["fetch.err"] != "boom" {
		t.Fatalf("unexpected record %v", rec)
	}
}
