package pollphase

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestItemSet_Zero(t *testing.T) {
	var s ItemSet
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if s.String() != "" {
		t.Errorf("String() = %q, want empty", s.String())
	}
	if len(s.Items()) != 0 {
		t.Errorf("Items() = %v, want empty", s.Items())
	}
}

func TestItemSet_PreservesOrderAndDuplicates(t *testing.T) {
	s := NewItemSet("3", "1", "3")
	if diff := cmp.Diff([]string{"3", "1", "3"}, s.Items()); diff != "" {
		t.Errorf("Items() mismatch (-want +got):\n%s", diff)
	}
	if s.String() != "3, 1, 3" {
		t.Errorf("String() = %q, want %q", s.String(), "3, 1, 3")
	}
}

func TestItemSet_NoAliasing(t *testing.T) {
	src := []string{"1", "2"}
	s := NewItemSet(src...)
	src[0] = "changed"

	got := s.Items()
	got[1] = "changed"

	if diff := cmp.Diff([]string{"1", "2"}, s.Items()); diff != "" {
		t.Errorf("Items() mismatch (-want +got):\n%s", diff)
	}
}

func TestItemSet_AppendLeavesReceiverUnchanged(t *testing.T) {
	base := NewItemSet("1", "2", "3")
	a := base.Append("4")
	b := base.Append("5")

	if diff := cmp.Diff([]string{"1", "2", "3"}, base.Items()); diff != "" {
		t.Errorf("base mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "4"}, a.Items()); diff != "" {
		t.Errorf("a mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "5"}, b.Items()); diff != "" {
		t.Errorf("b mismatch (-want +got):\n%s", diff)
	}
}

func TestPollError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &PollError{
		Items:      NewItemSet("1", "2"),
		Generation: 3,
		Cause:      cause,
	})

	if !errors.Is(err, ErrPollOperationFailed) {
		t.Error("errors.Is(err, ErrPollOperationFailed) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if errors.Is(err, ErrInvalidConfig) {
		t.Error("errors.Is(err, ErrInvalidConfig) = true")
	}
	for _, want := range []string{"generation 3", "items [1, 2]", "boom"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Error() = %q, want containing %q", err.Error(), want)
		}
	}
}
