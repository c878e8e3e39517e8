package blockdev

import "testing"

func TestReadWriteRoundTrip(t *testing.T) {
	d := New()
	if err := d.Init(4096); err != nil {
		t.Fatalf("init: %v", err)
	}

	want := []byte("hello, xfsim")
	if err := d.Write(100, want); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, len(want))
	if err := d.Read(100, got); err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(got) != string(want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOutOfBounds(t *testing.T) {
	d := New()
	if err := d.Init(100); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := d.Write(90, make([]byte, 20)); err != ErrOutOfBounds {
		t.Errorf("write: got %v, want ErrOutOfBounds", err)
	}
	if err := d.Read(90, make([]byte, 20)); err != ErrOutOfBounds {
		t.Errorf("read: got %v, want ErrOutOfBounds", err)
	}
}

func TestNotInitialized(t *testing.T) {
	d := New()
	if err := d.Read(0, make([]byte, 1)); err != ErrNotInitialized {
		t.Errorf("read: got %v, want ErrNotInitialized", err)
	}
	if err := d.Write(0, make([]byte, 1)); err != ErrNotInitialized {
		t.Errorf("write: got %v, want ErrNotInitialized", err)
	}
}

func TestDestroy(t *testing.T) {
	d := New()
	_ = d.Init(16)
	d.Destroy()
	if err := d.Read(0, make([]byte, 1)); err != ErrNotInitialized {
		t.Errorf("read after destroy: got %v, want ErrNotInitialized", err)
	}
}
