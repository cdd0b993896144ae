package xerrors

import (
	"errors"
	"io/fs"
	"runtime"
	"strings"
	"testing"
)

var errSentinel = errors.New("sentinel")

type stackPCs interface{ StackPCs() []uintptr }

func stackOf(t *testing.T, err error) []uintptr {
	t.Helper()
	var s stackPCs
	if !errors.As(err, &s) {
		t.Fatalf("%v has no stack", err)
	}
	return s.StackPCs()
}

// topFunction is the first frame of pcs.
func topFunction(pcs []uintptr) string {
	fr, _ := runtime.CallersFrames(pcs).Next()
	return fr.Function
}

func pcFunction(pc uintptr) string {
	fr, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return fr.Function
}

func TestNilPassthrough(t *testing.T) {
	if WithStack(nil) != nil || EnsureTrace(nil) != nil || Wrap(nil, "x") != nil || Wrapf(nil, "%d", 1) != nil {
		t.Fatal("nil input must stay nil")
	}
	if Join() != nil || Join(nil, nil) != nil {
		t.Fatal("Join of nils must be nil")
	}
}

func TestNew_StackStartsAtCaller(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"New", New("boom"), "boom"},
		{"Newf", Newf("fetch %s: %d", "github", 502), "fetch github: 502"},
		{"WithStack", WithStack(errSentinel), "sentinel"},
		{"Join", Join(errSentinel, nil), "sentinel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Fatalf("Error() = %q, want %q", tt.err.Error(), tt.msg)
			}
			top := topFunction(stackOf(t, tt.err))
			if !strings.Contains(top, "TestNew_StackStartsAtCaller") {
				t.Fatalf("top frame = %q, want the test function", top)
			}
			var marker interface{ IsXerrorsWrapper() }
			if !errors.As(tt.err, &marker) {
				t.Fatal("missing IsXerrorsWrapper marker")
			}
		})
	}
}

func TestWrap_RecordsCallerFrame(t *testing.T) {
	err := Wrapf(fs.ErrNotExist, "read %s", "index.html")

	if got := err.Error(); got != "read index.html: file does not exist" {
		t.Fatalf("Error() = %q", got)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("wrapped error should match fs.ErrNotExist")
	}

	var hp interface{ PC() uintptr }
	if !errors.As(err, &hp) || hp.PC() == 0 {
		t.Fatal("Wrapf should record a PC")
	}
	if fn := pcFunction(hp.PC()); !strings.Contains(fn, "TestWrap_RecordsCallerFrame") {
		t.Fatalf("PC resolves to %q", fn)
	}
	var s stackPCs
	if errors.As(err, &s) {
		t.Fatal("Wrap alone should not capture a full stack")
	}
}

func TestEnsureTrace(t *testing.T) {
	plain := errors.New("plain")
	traced := EnsureTrace(plain)
	if len(stackOf(t, traced)) == 0 {
		t.Fatal("EnsureTrace should add a stack to a plain error")
	}
	if !errors.Is(traced, plain) {
		t.Fatal("EnsureTrace must keep the chain")
	}

	if again := EnsureTrace(traced); again != traced {
		t.Fatal("EnsureTrace should not restack an error that has one")
	}

	deep := Wrap(New("inner"), "outer")
	if EnsureTrace(deep) != deep {
		t.Fatal("a stack anywhere in the chain counts")
	}
}

func TestJoin_KeepsEveryError(t *testing.T) {
	errA := errors.New("github-token")
	errB := errors.New("wakatime-api-key")

	err := Join(errA, nil, errB)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Join lost an error: %v", err)
	}
	if got := err.Error(); got != "github-token\nwakatime-api-key" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestChainedWrap(t *testing.T) {
	base := New("dial tcp: refused")
	err := Wrap(Wrapf(base, "redis get %s", "stats:github"), "cache lookup")

	if got := err.Error(); got != "cache lookup: redis get stats:github: dial tcp: refused" {
		t.Fatalf("Error() = %q", got)
	}
	if !errors.Is(err, base) {
		t.Fatal("errors.Is should reach the base error")
	}
	if len(stackOf(t, err)) == 0 {
		t.Fatal("stack from New should be reachable through wraps")
	}
}

func TestCallers_Depth(t *testing.T) {
	if n := len(callers(0)); n == 0 || n > maxStackDepth {
		t.Fatalf("callers depth = %d", n)
	}
	if caller(0) == 0 {
		t.Fatal("caller(0) = 0")
	}
}
