package errs

import "testing"

func TestResolveReportLogsAndReturns(t *testing.T) {
	p := NewPolicy()
	p.Mode = Report
	exited := false
	p.exitFunc = func(int) { exited = true }

	err := New(KindValidation, "boom")
	got := p.Resolve(err)
	if got != err {
		t.Fatalf("Resolve returned %v, want the original error", got)
	}
	if p.Last != err.Error() {
		t.Fatalf("Last = %q, want %q", p.Last, err.Error())
	}
	if exited {
		t.Fatal("Report mode must not call exitFunc")
	}
}

func TestResolveIgnoreReturnsWithoutLogging(t *testing.T) {
	p := NewPolicy()
	p.Mode = Ignore
	exited := false
	p.exitFunc = func(int) { exited = true }

	err := New(KindIO, "disk full")
	got := p.Resolve(err)
	if got != err {
		t.Fatalf("Resolve returned %v, want the original error", got)
	}
	if p.Last != err.Error() {
		t.Fatalf("Ignore mode must still record the sticky last-error")
	}
	if exited {
		t.Fatal("Ignore mode must not call exitFunc")
	}
}

func TestResolveAbortCallsExitFunc(t *testing.T) {
	p := NewPolicy()
	p.Mode = Abort
	var exitCode = -1
	p.exitFunc = func(code int) { exitCode = code }

	err := New(KindState, "fatal")
	p.Resolve(err)
	if exitCode != 1 {
		t.Fatalf("Abort mode exit code = %d, want 1", exitCode)
	}
}

func TestResolveNilIsNoop(t *testing.T) {
	p := NewPolicy()
	p.Mode = Abort
	exited := false
	p.exitFunc = func(int) { exited = true }

	if err := p.Resolve(nil); err != nil {
		t.Fatalf("Resolve(nil) = %v, want nil", err)
	}
	if exited {
		t.Fatal("Resolve(nil) must not invoke exitFunc")
	}
}

func TestParseModeRoundTrip(t *testing.T) {
	cases := map[string]Mode{
		"abort":  Abort,
		"report": Report,
		"":       Report,
		"ignore": Ignore,
	}
	for s, want := range cases {
		got, err := ParseMode(s)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("ParseMode(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Fatal("expected ParseMode to reject an unknown token")
	}
}
