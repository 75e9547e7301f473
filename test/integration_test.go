package test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"geo-lb/client"
	"geo-lb/loadbalance"
	"geo-lb/message"
	"geo-lb/middleware"
	"geo-lb/registry"
	"geo-lb/server"
)

// startStack runs the full front door (middlewares included) over httptest.
func startStack(t *testing.T) (*client.Client, *loadbalance.LocalityBalancer) {
	t.Helper()

	log := zap.NewNop()
	lb := loadbalance.NewLocalityBalancer(loadbalance.WithLogger(log))
	srv := server.NewServer(lb, server.WithLogger(log))
	srv.Use(middleware.RecoverMiddleware(log))
	srv.Use(middleware.LoggingMiddleware(log))
	srv.Use(middleware.RateLimitMiddleware(1000, 1000))
	srv.Use(middleware.TimeOutMiddleware(2 * time.Second))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return client.New(ts.URL), lb
}

func TestLocalitySelectionEndToEnd(t *testing.T) {
	c, _ := startStack(t)
	ctx := context.Background()

	austin, err := c.Register(ctx, message.RegisterRequest{Addr: "10.0.0.1:80", Country: "US", State: "TX", City: "Austin"})
	if err != nil {
		t.Fatal(err)
	}
	dallas, err := c.Register(ctx, message.RegisterRequest{Addr: "10.0.0.2:80", Country: "US", State: "TX", City: "Dallas"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.Select(ctx, "US-TX-Austin")
	if err != nil {
		t.Fatal(err)
	}
	if got != austin {
		t.Fatalf("expect Austin, got %+v", got)
	}

	got, err = c.Select(ctx, "*-*-Dallas")
	if err != nil {
		t.Fatal(err)
	}
	if got != dallas {
		t.Fatalf("expect Dallas, got %+v", got)
	}

	for i := 0; i < 20; i++ {
		got, err = c.Select(ctx, "*-TX-*")
		if err != nil {
			t.Fatal(err)
		}
		if got != austin && got != dallas {
			t.Fatalf("expect a TX client, got %+v", got)
		}
	}

	if err := c.Deregister(ctx, austin.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Select(ctx, "US-TX-Austin"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expect ErrNotFound after deregister, got %v", err)
	}
	if _, err := c.Select(ctx, "US-Lima-Houston"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expect ErrNotFound for unmatched filter, got %v", err)
	}
	if _, err := c.Select(ctx, ""); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expect ErrNotFound for empty filter, got %v", err)
	}

	if err := c.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	list, err := c.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("expect empty registry after reset, got %d", len(list))
	}
}

func TestServeOverTCP(t *testing.T) {
	lb := loadbalance.NewLocalityBalancer()
	srv := server.NewServer(lb)
	srv.Use(middleware.TimeOutMiddleware(time.Second))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve("tcp", "127.0.0.1:0") }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	c := client.New("http://"+srv.Addr().String(), client.WithRetry(2, 10*time.Millisecond))
	lima, err := c.Register(context.Background(), message.RegisterRequest{Addr: "10.1.0.1:80", Country: "Peru", State: "Lima", City: "Lima"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Select(context.Background(), "Peru")
	if err != nil {
		t.Fatal(err)
	}
	if got != lima {
		t.Fatalf("expect %+v, got %+v", lima, got)
	}

	if err := srv.Shutdown(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("expect clean Serve return, got %v", err)
	}
}

// TestEtcdMirrorEndToEnd needs a local etcd on localhost:2379.
func TestEtcdMirrorEndToEnd(t *testing.T) {
	etcd, err := registry.NewEtcdRegistry([]string{"localhost:2379"}, "/geo-lb-test/"+t.Name()+"/")
	if err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}
	defer etcd.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), time.Second)
	_, err = etcd.Discover(pingCtx)
	cancelPing()
	if err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}

	c, lb := startStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go registry.Mirror(ctx, etcd.Watch(ctx), lb, zap.NewNop())

	houston := registry.NewClient("10.2.0.1:80", "US", "TX", "Houston")
	if err := etcd.Announce(ctx, houston, 10); err != nil {
		t.Fatal(err)
	}

	var got registry.Client
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err = c.Select(ctx, "US-TX-Houston")
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("announced client never mirrored: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if got != houston {
		t.Fatalf("expect %+v, got %+v", houston, got)
	}

	if err := etcd.Withdraw(ctx, houston.ID); err != nil {
		t.Fatal(err)
	}
	deadline = time.Now().Add(5 * time.Second)
	for {
		if _, err = c.Select(ctx, "US-TX-Houston"); errors.Is(err, registry.ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("withdrawn client still selectable: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
