package log

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/addynoven/portfolio-web/internal/xerrors"
)

type customError struct{ msg string }

func (e *customError) Error() string { return e.msg }

func TestErrorChain(t *testing.T) {
	base := errors.New("root")
	wrapped := fmt.Errorf("mid: %w", base)
	top := fmt.Errorf("top: %w", wrapped)

	got := errorChain(top)
	want := []string{"top: mid: root", "mid: root", "root"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("errorChain = %v, want %v", got, want)
	}
}

func TestErrorChain_DeduplicatesStackWrappers(t *testing.T) {
	err := xerrors.EnsureTrace(errors.New("same"))
	if got := errorChain(err); len(got) != 1 {
		t.Fatalf("errorChain = %v, want a single entry", got)
	}
}

func TestErrorChain_Joined(t *testing.T) {
	got := errorChain(errors.Join(errors.New("a"), errors.New("b")))
	if len(got) != 3 || got[1] != "a" || got[2] != "b" {
		t.Fatalf("errorChain = %v", got)
	}
}

func TestClassifyTypes(t *testing.T) {
	if s, r := classifyTypes(nil); s != "" || r != "" {
		t.Fatalf("nil: got (%q, %q)", s, r)
	}

	err := xerrors.Wrap(fmt.Errorf("ctx: %w", &customError{"bad"}), "outer")
	surface, root := classifyTypes(err)
	if surface != "*log.customError" {
		t.Errorf("surface = %q, want *log.customError", surface)
	}
	if root != "*log.customError" {
		t.Errorf("root = %q, want *log.customError", root)
	}
}

func TestChainLinks(t *testing.T) {
	err := xerrors.Wrap(xerrors.Wrap(errors.New("root"), "mid"), "top")

	links := chainLinks(err, 0)
	if len(links) != 2 {
		t.Fatalf("links = %d, want 2 (only positioned wrappers after the head)", len(links))
	}
	if links[0]["func"] == nil {
		t.Fatal("Wrap links should carry a func position")
	}

	if got := chainLinks(err, 1); len(got) != 1 {
		t.Fatalf("max=1 produced %d links", len(got))
	}
}

func TestErrorKV_Nil(t *testing.T) {
	if kv := errorKV(nil, true, 8); kv != nil {
		t.Fatalf("errorKV(nil) = %v", kv)
	}
}

func TestFrameHelpers_Empty(t *testing.T) {
	if _, _, _, ok := frameFromPC(0); ok {
		t.Error("frameFromPC(0) should report !ok")
	}
	if _, _, _, ok := firstExtFrame(nil); ok {
		t.Error("firstExtFrame(nil) should report !ok")
	}
}
