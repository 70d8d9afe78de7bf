package testutil

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path := WriteFile(t, dir, "pin.der", []byte{0x30, 0x82})

	if path != filepath.Join(dir, "pin.der") {
		t.Fatalf("WriteFile returned wrong path: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(data))
	}
}

func TestAssertHelpersPass(t *testing.T) {
	sentinel := errors.New("sentinel")

	AssertNoError(t, nil)
	AssertErrorIs(t, sentinel, sentinel)
	AssertEqual(t, 42, 42)
	AssertEqual(t, "hello", "hello")
}

func TestLines(t *testing.T) {
	l := NewLines("a", "b")

	for _, want := range []string{"a", "b"} {
		got, err := l.ReadLine()
		AssertNoError(t, err)
		AssertEqual(t, got, want)
	}
	if _, err := l.ReadLine(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestLines_FailWith(t *testing.T) {
	boom := errors.New("connection reset")
	l := NewLines().FailWith(boom)

	_, err := l.ReadLine()
	AssertErrorIs(t, err, boom)
}

func TestLines_BlockOn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLines("x").BlockOn(ctx)

	if _, err := l.ReadLine(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := l.ReadLine()
	AssertErrorIs(t, err, context.Canceled)
}

func TestLines_Close(t *testing.T) {
	l := NewLines("x")
	AssertNoError(t, l.Close())

	if !l.Closed() {
		t.Fatal("expected Closed() after Close")
	}
	if _, err := l.ReadLine(); err == nil {
		t.Fatal("expected error reading a closed reader")
	}
}

func TestStaticTransport(t *testing.T) {
	tr := StaticTransport(200, "data: hi")

	resp, err := tr.Do(context.Background(), nil)
	AssertNoError(t, err)
	AssertEqual(t, resp.StatusCode, 200)

	line, err := resp.Lines.ReadLine()
	AssertNoError(t, err)
	AssertEqual(t, line, "data: hi")
	AssertEqual(t, len(tr.Requests()), 1)
}

func TestByteCounter(t *testing.T) {
	AssertEqual(t, ByteCounter.CountTokens("abcd"), 4)
}
