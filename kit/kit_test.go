package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+">")
				resp, err := next(ctx, req)
				order = append(order, "<"+name)
				return resp, err
			}
		}
	}
	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil || resp != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}
	want := "a> b> endpoint <b <a"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("order: got %q, want %q", got, want)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	errFail := errors.New("fail")

	ok := Logging(logger, "verify")(func(context.Context, any) (any, error) { return 1, nil })
	bad := Logging(logger, "build")(func(context.Context, any) (any, error) { return nil, errFail })

	ctx := WithTraceID(WithTransport(context.Background(), TransportHTTP), "trc_1")
	if _, err := ok(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := bad(ctx, nil); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v", err)
	}

	out := buf.String()
	for _, want := range []string{"endpoint=verify", "endpoint=build", "transport=http", "trace_id=trc_1", "level=WARN", "error=fail"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestContext_Defaults(t *testing.T) {
	ctx := context.Background()
	if v := GetTransport(ctx); v != TransportCLI {
		t.Errorf("default transport: got %q", v)
	}
	if v := GetTraceID(ctx); v != "" {
		t.Errorf("default trace id: got %q", v)
	}
	if v := GetCaller(ctx); v != "" {
		t.Errorf("default caller: got %q", v)
	}
}

func TestContext_RoundTrip(t *testing.T) {
	ctx := WithCaller(WithTraceID(WithTransport(context.Background(), TransportMCP), "trc_x"), "ops")
	if GetTransport(ctx) != TransportMCP || GetTraceID(ctx) != "trc_x" || GetCaller(ctx) != "ops" {
		t.Errorf("round trip: %q %q %q", GetTransport(ctx), GetTraceID(ctx), GetCaller(ctx))
	}
}

func TestRecover(t *testing.T) {
	ep := Recover()(func(context.Context, any) (any, error) { panic("boom") })
	resp, err := ep(context.Background(), nil)
	if !errors.Is(err, ErrPanic) || resp != nil {
		t.Fatalf("got (%v, %v), want ErrPanic", resp, err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("panic value must be in the error, got %q", err)
	}
}
