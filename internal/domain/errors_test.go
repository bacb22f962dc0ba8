package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCooldownParts(t *testing.T) {
	e := &CooldownError{Remaining: 37*time.Hour + 59*time.Minute + 58*time.Second + 200*time.Millisecond}
	h, m, s := e.Parts()
	if h != 37 || m != 59 || s != 59 {
		t.Fatalf("unexpected parts %d:%d:%d", h, m, s)
	}
	if e.Error() != "next attempt available in 37h 59m 59s" {
		t.Fatalf("unexpected message %q", e.Error())
	}
	if h, m, s := (&CooldownError{Remaining: -time.Second}).Parts(); h != 0 || m != 0 || s != 0 {
		t.Fatalf("negative remaining must clamp to zero")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{&ValidationError{Field: "goal"}, KindValidation},
		{ErrInvalidTabEvent, KindValidation},
		{fmt.Errorf("wrap: %w", &CooldownError{Remaining: time.Hour}), KindCooldown},
		{ErrSessionNotFound, KindSessionState},
		{fmt.Errorf("x: %w", ErrAttemptFinished), KindSessionState},
		{ErrStaleSubmission, KindSessionState},
		{ErrAttemptInProgress, KindSessionState},
		{&StoreError{Op: "get", Err: errors.New("io")}, KindStoreFault},
		{&NotifierError{Chunk: 2, Err: errors.New("timeout")}, KindNotifierFault},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestParseTabEventKind(t *testing.T) {
	if k, err := ParseTabEventKind("blur"); err != nil || k != TabBlur {
		t.Fatalf("blur: %v %v", k, err)
	}
	if _, err := ParseTabEventKind("BLUR"); !errors.Is(err, ErrInvalidTabEvent) {
		t.Fatalf("expected strict kinds, got %v", err)
	}
}
