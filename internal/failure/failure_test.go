package failure

import (
	"io"
	"testing"

	"github.com/pkg/errors"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, None},
		{"untyped", io.EOF, General},
		{"wrapped", Wrap(io.EOF), General},
		{"invalid request", InvalidRequestf("bad value %q", "abc"), InvalidRequest},
		{"invalid state", InvalidStatef("not armable"), InvalidState},
		{"outer message", errors.WithMessage(InvalidStatef("not armable"), "arm"), InvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf()=%v want %v", got, tc.want)
			}
		})
	}
}

func TestWrapKeepsKind(t *testing.T) {
	err := Wrap(InvalidRequestf("no"))
	if !Is(err, InvalidRequest) {
		t.Fatalf("kind=%v want invalid_request", KindOf(err))
	}

	err = Wrapf(InvalidStatef("not armable"), "arm")
	if !Is(err, InvalidState) {
		t.Fatalf("kind=%v want invalid_state", KindOf(err))
	}
	if err.Error() != "arm: not armable" {
		t.Fatalf("message=%q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	err := Wrapf(io.ErrUnexpectedEOF, "read telemetry")
	if errors.Cause(err) != io.ErrUnexpectedEOF {
		t.Fatalf("cause=%v", errors.Cause(err))
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("errors.Is failed for %v", err)
	}
}

func TestKindString(t *testing.T) {
	if General.String() != "general" || InvalidRequest.String() != "invalid_request" || InvalidState.String() != "invalid_state" {
		t.Fatalf("unexpected names")
	}
}
