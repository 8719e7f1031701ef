package process

import "testing"

func TestNewTrimsTrailingNewlines(t *testing.T) {
	s := New(false, "echo hi\n\n")
	if s.Command != "echo hi" {
		t.Fatalf("Command = %q, want %q", s.Command, "echo hi")
	}
}

func TestKeyDistinguishesScriptFromExec(t *testing.T) {
	a := New(false, "echo hi")
	b := New(true, "echo hi")
	if a.Key() == b.Key() {
		t.Fatalf("Key() collided for exec vs script: %q", a.Key())
	}
}

func TestHasShellChars(t *testing.T) {
	cases := map[string]bool{
		"echo hi":         false,
		"/bin/true":       false,
		"echo $HOME":      true,
		"a | b":           true,
		"echo 'hi'":       true,
		"ls foo*.txt":     true,
	}
	for in, want := range cases {
		if got := HasShellChars(in); got != want {
			t.Errorf("HasShellChars(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestArgvSplitsOnWhitespace(t *testing.T) {
	s := New(false, "echo  hi   there")
	argv := s.Argv()
	want := []string{"echo", "hi", "there"}
	if len(argv) != len(want) {
		t.Fatalf("Argv() = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("Argv()[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestShellBodyPrependsExecOnlyWhenDeclaredAsCommandWithShellChars(t *testing.T) {
	s := New(true, "echo $HOME")
	if got := s.ShellBody(true); got != "exec echo $HOME" {
		t.Fatalf("ShellBody(true) = %q, want exec-prefixed", got)
	}
	if got := s.ShellBody(false); got != "echo $HOME" {
		t.Fatalf("ShellBody(false) = %q, want verbatim", got)
	}
}

func TestIsSingleLine(t *testing.T) {
	if !New(true, "echo hi").IsSingleLine() {
		t.Fatal("expected a single-line script body")
	}
	if New(true, "echo hi\necho bye").IsSingleLine() {
		t.Fatal("expected a multi-line script body to report false")
	}
}
