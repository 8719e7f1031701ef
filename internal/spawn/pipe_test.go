package spawn

import (
	"os"
	"testing"
)

func TestSetupErrorWireRoundTrip(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()

	writeSetupError(w, OpChroot, Errno(1), "/no/such/root")
	w.Close()

	got, err := readSetupError(r)
	if err != nil {
		t.Fatalf("readSetupError: %v", err)
	}
	if got == nil {
		t.Fatal("expected a non-nil SetupError")
	}
	if got.Operation != OpChroot || got.Errno != 1 || got.Arg != "/no/such/root" {
		t.Fatalf("got %+v, want {OpChroot 1 /no/such/root}", got)
	}
}

func TestReadSetupErrorOnCleanExecIsNil(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	w.Close() // simulates a successful exec closing the O_CLOEXEC write end

	got, err := readSetupError(r)
	if err != nil {
		t.Fatalf("readSetupError: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil (no error reported)", got)
	}
}
