package session

import (
	"testing"
	"time"
)

func recvBool(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("no value delivered")
	}
	return false
}

func TestLoginState_PublishesTransitions(t *testing.T) {
	s := NewLoginState(false)
	ch, cancel := s.SubscribeLogin()
	defer cancel()

	s.SetLoggedIn(true)
	if got := recvBool(t, ch); !got {
		t.Errorf("got %v, want true", got)
	}
	if !s.LoggedIn() {
		t.Error("LoggedIn() = false after SetLoggedIn(true)")
	}
}

func TestLoginState_SameValueIsNotPublished(t *testing.T) {
	s := NewLoginState(true)
	ch, cancel := s.SubscribeLogin()
	defer cancel()

	s.SetLoggedIn(true)

	select {
	case v := <-ch:
		t.Fatalf("unexpected value %v", v)
	default:
	}
}

func TestLoginState_SlowReaderSeesLatest(t *testing.T) {
	s := NewLoginState(false)
	ch, cancel := s.SubscribeLogin()
	defer cancel()

	s.SetLoggedIn(true)
	s.SetLoggedIn(false)

	if got := recvBool(t, ch); got {
		t.Errorf("got %v, want latest false", got)
	}
	select {
	case v := <-ch:
		t.Fatalf("stale value %v still queued", v)
	default:
	}
}

func TestLoginState_CancelClosesAndDeregisters(t *testing.T) {
	s := NewLoginState(false)
	ch, cancel := s.SubscribeLogin()
	if s.Subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", s.Subscribers())
	}

	cancel()
	cancel()

	if s.Subscribers() != 0 {
		t.Errorf("subscribers = %d after cancel, want 0", s.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Error("channel not closed after cancel")
	}
	// Publishing with no subscribers must not block or panic.
	s.SetLoggedIn(true)
}

func TestActiveMachine_SelectSignals(t *testing.T) {
	a := NewActiveMachine("")
	if _, ok := a.ActiveMachine(); ok {
		t.Fatal("no machine should be active")
	}

	ch, cancel := a.SubscribeActiveMachine()
	defer cancel()

	a.Select("m1")
	a.Select("m1")
	a.Select("m2")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no signal delivered")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	if id, ok := a.ActiveMachine(); !ok || id != "m2" {
		t.Errorf("ActiveMachine() = %q, %v; want m2, true", id, ok)
	}
}

func TestActiveMachine_SubscribersAreIndependent(t *testing.T) {
	a := NewActiveMachine("m1")
	ch1, cancel1 := a.SubscribeActiveMachine()
	ch2, cancel2 := a.SubscribeActiveMachine()
	defer cancel2()

	cancel1()
	a.Select("")

	if _, ok := <-ch1; ok {
		t.Error("cancelled subscriber received a signal")
	}
	select {
	case <-ch2:
	case <-time.After(time.Second):
		t.Fatal("live subscriber missed the signal")
	}
	if a.Subscribers() != 1 {
		t.Errorf("subscribers = %d, want 1", a.Subscribers())
	}
}
