// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"testing"
	"time"
)

func TestLoopbackPairRoundTrips(t *testing.T) {
	client, server := NewLoopbackPair("client", "server")
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte("ping"))
	}()

	buf := make([]byte, 4)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("got %q, want ping", buf[:n])
	}

	go func() {
		_, _ = server.Write([]byte("pong"))
	}()
	n, err = client.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "pong" {
		t.Fatalf("got %q, want pong", buf[:n])
	}
}

func TestLoopbackCloseUnblocksPendingRead(t *testing.T) {
	client, server := NewLoopbackPair("client", "server")
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, err := client.Read(buf)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error from the unblocked read")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock the pending read")
	}
}

func TestLoopbackWriteAfterCloseFails(t *testing.T) {
	client, server := NewLoopbackPair("client", "server")
	defer server.Close()

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := client.Write([]byte("x")); err != ErrClosedConn {
		t.Fatalf("got %v, want ErrClosedConn", err)
	}
}

func TestLoopbackRemoteAddrReportsPeerName(t *testing.T) {
	client, server := NewLoopbackPair("client-name", "server-name")
	defer client.Close()
	defer server.Close()

	if client.RemoteAddr().String() != "client-name" {
		t.Errorf("got %q, want client-name", client.RemoteAddr().String())
	}
	if client.RemoteAddr().Network() != "pipe" {
		t.Errorf("got %q, want pipe", client.RemoteAddr().Network())
	}
}

var _ io.ReadWriteCloser = (*Loopback)(nil)
