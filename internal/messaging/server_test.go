package messaging

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pixil98/go-testutil"
)

func TestNatsServer_ClientURLBeforeStart(t *testing.T) {
	s, err := NewNatsServer(WithHost("0.0.0.0"), WithPort(4333))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "url", s.ClientURL(), "nats://0.0.0.0:4333")
}

func TestNatsServer_Start(t *testing.T) {
	s, err := NewNatsServer(WithPort(-1), WithStartTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	url := s.ClientURL()
	if !strings.HasPrefix(url, "nats://") || strings.HasSuffix(url, ":-1") {
		t.Errorf("unexpected client url %q", url)
	}

	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting to embedded server: %v", err)
	}
	sub, err := conn.SubscribeSync("mailbot.test")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	if err := conn.Publish("mailbot.test", []byte("ping")); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("receiving: %v", err)
	}
	testutil.AssertEqual(t, "payload", string(msg.Data), "ping")
	conn.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNatsServer_Token(t *testing.T) {
	s, err := NewNatsServer(WithPort(-1), WithToken("s3cret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	if conn, err := nats.Connect(s.ClientURL()); err == nil {
		conn.Close()
		t.Fatal("expected connection without token to be refused")
	}

	conn, err := nats.Connect(s.ClientURL(), nats.Token("s3cret"))
	if err != nil {
		t.Fatalf("connecting with token: %v", err)
	}
	conn.Close()
}
