package clock

import (
	"testing"
	"time"
)

func TestReal_TickerFires(t *testing.T) {
	tk := Real().Ticker(5 * time.Millisecond)
	defer tk.Stop()

	select {
	case <-tk.Chan():
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestReal_Now(t *testing.T) {
	before := time.Now()
	got := Real().Now()
	if got.Before(before) {
		t.Errorf("Now() = %v, before %v", got, before)
	}
}
