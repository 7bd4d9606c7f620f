package access

import (
	"context"
	"errors"
	"testing"

	"github.com/tripflow/platform/pkg/validation"
)

func TestTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusRevoked, true},
		{StatusRejected, StatusApproved, true},
		{StatusRevoked, StatusApproved, true},
		{StatusApproved, StatusApproved, false},
		{StatusApproved, StatusRejected, false},
		{StatusPending, StatusRevoked, false},
		{StatusRevoked, StatusRejected, false},
	}
	for _, c := range cases {
		if got := TransitionAllowed(c.from, c.to); got != c.want {
			t.Errorf("TransitionAllowed(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestSetProfileRejectsBadInput(t *testing.T) {
	// both guards fire before the repository is touched
	s := NewService(nil, nil)

	err := s.SetProfile(context.Background(), 42, "Ivanov", "Sports Federation")
	if validation.Reason(err) != validation.ReasonNameTooShort {
		t.Errorf("single-token name: reason = %q, want %q", validation.Reason(err), validation.ReasonNameTooShort)
	}

	err = s.SetProfile(context.Background(), 42, "Ivanov Ivan", "x")
	if validation.Reason(err) != validation.ReasonTooShort {
		t.Errorf("short organization: reason = %q, want %q", validation.Reason(err), validation.ReasonTooShort)
	}
}

func TestListUsersRejectsUnknownStatus(t *testing.T) {
	s := NewService(nil, nil)
	_, err := s.ListUsers(context.Background(), "frozen")
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("ListUsers(frozen) err = %v, want ErrUnknownStatus", err)
	}
}

func TestKnownStatus(t *testing.T) {
	for _, status := range []string{StatusPending, StatusApproved, StatusRejected, StatusRevoked} {
		if !KnownStatus(status) {
			t.Errorf("KnownStatus(%s) = false", status)
		}
	}
	if KnownStatus("frozen") || KnownStatus("") {
		t.Error("KnownStatus accepted an unknown value")
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		user User
		want string
	}{
		{User{FullName: "Ivanov Ivan", FirstName: "Vanya"}, "Ivanov Ivan"},
		{User{FirstName: "Ivan", LastName: "Ivanov"}, "Ivan Ivanov"},
		{User{FirstName: "Ivan"}, "Ivan"},
		{User{LastName: "Ivanov"}, "Ivanov"},
		{User{}, ""},
	}
	for _, c := range cases {
		if got := c.user.DisplayName(); got != c.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", c.user, got, c.want)
		}
	}
}
