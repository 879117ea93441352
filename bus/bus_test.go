package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDispatch_RegisteredHandler(t *testing.T) {
	d := NewDispatcher()
	d.Register("ECHO", func(_ context.Context, payload json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return s, nil
	})

	env := d.Dispatch(context.Background(), Message{Type: "ECHO", Payload: json.RawMessage(`"hi"`)})
	if !env.Success {
		t.Fatalf("expected success, got error %q", env.Error)
	}
	if string(env.Data) != `"hi"` {
		t.Fatalf("got data %s", env.Data)
	}
}

func TestDispatch_UnknownType(t *testing.T) {
	d := NewDispatcher()
	env := d.Dispatch(context.Background(), Message{Type: "NOPE"})
	if env.Success {
		t.Fatal("expected failure envelope")
	}
	if env.Error != "Unknown message type: NOPE" {
		t.Fatalf("got error %q", env.Error)
	}
}

func TestDispatch_HandlerError(t *testing.T) {
	d := NewDispatcher()
	d.Register("FAIL", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})

	env := d.Dispatch(context.Background(), Message{Type: "FAIL"})
	if env.Success {
		t.Fatal("expected failure envelope")
	}
	if env.Error != "boom" {
		t.Fatalf("got error %q", env.Error)
	}
	if env.Data != nil {
		t.Fatal("failure envelope must not carry data")
	}
}

func TestDispatch_ReplacesHandler(t *testing.T) {
	d := NewDispatcher()
	d.Register("T", func(context.Context, json.RawMessage) (any, error) { return "old", nil })
	d.Register("T", func(context.Context, json.RawMessage) (any, error) { return "new", nil })

	env := d.Dispatch(context.Background(), Message{Type: "T"})
	if string(env.Data) != `"new"` {
		t.Fatalf("got %s, want new handler's result", env.Data)
	}
}

func TestWithTimeout_CancelsHandler(t *testing.T) {
	d := NewDispatcher()
	d.Register("SLOW", func(ctx context.Context, _ json.RawMessage) (any, error) {
		select {
		case <-time.After(time.Second):
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, WithTimeout(20*time.Millisecond))

	env := d.Dispatch(context.Background(), Message{Type: "SLOW"})
	if env.Success {
		t.Fatal("expected timeout failure")
	}
}

type funcTarget func(ctx context.Context, msgType string, payload []byte) ([]byte, error)

func (f funcTarget) Deliver(ctx context.Context, msgType string, payload []byte) ([]byte, error) {
	return f(ctx, msgType, payload)
}

func TestSend_Success(t *testing.T) {
	target := funcTarget(func(_ context.Context, msgType string, payload []byte) ([]byte, error) {
		if msgType != TypePing {
			t.Errorf("got type %q", msgType)
		}
		return []byte(`"PONG"`), nil
	})

	data, err := Send(context.Background(), target, TypePing, nil, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"PONG"` {
		t.Fatalf("got %s", data)
	}
}

func TestSend_Timeout(t *testing.T) {
	target := funcTarget(func(ctx context.Context, _ string, _ []byte) ([]byte, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return []byte("late"), nil
	})

	start := time.Now()
	_, err := Send(context.Background(), target, TypeCapturePageV2, nil, 30*time.Millisecond)
	elapsed := time.Since(start)

	var te *ErrTimeout
	if !errors.As(err, &te) {
		t.Fatalf("expected ErrTimeout, got %T: %v", err, err)
	}
	if te.Type != TypeCapturePageV2 {
		t.Fatalf("timeout carries type %q", te.Type)
	}
	// The caller must not wait for the abandoned delivery to finish.
	if elapsed > 500*time.Millisecond {
		t.Fatalf("Send blocked for %v after timeout", elapsed)
	}
}

func TestSend_DeliveryFailurePassesThrough(t *testing.T) {
	want := &ErrDeliveryFailure{Target: "tab-1", Cause: errors.New("page gone")}
	target := funcTarget(func(context.Context, string, []byte) ([]byte, error) {
		return nil, want
	})

	_, err := Send(context.Background(), target, TypeExtractPageInfo, nil, time.Second)
	var df *ErrDeliveryFailure
	if !errors.As(err, &df) {
		t.Fatalf("expected ErrDeliveryFailure, got %T: %v", err, err)
	}
	if df.Target != "tab-1" {
		t.Fatalf("got target %q", df.Target)
	}
}

func TestSend_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := funcTarget(func(ctx context.Context, _ string, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := Send(ctx, target, TypePing, nil, time.Second)
	if err == nil {
		t.Fatal("expected error from cancelled parent")
	}
	var te *ErrTimeout
	if errors.As(err, &te) {
		t.Fatal("parent cancellation must not be reported as a timeout")
	}
}
