package diff

import (
	"slices"
	"testing"

	"clusterlink"
)

type known struct {
	key  string
	host string
}

func (k *known) Key() string      { return k.key }
func (k *known) HostName() string { return k.host }

func online(id, host string) clusterlink.ClusterRecord {
	return clusterlink.ClusterRecord{ClusterID: id, HostName: host, IsOnline: true}
}

func keys[D Tracked](ds []D) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Key())
	}
	return out
}

func recordIDs(recs []clusterlink.ClusterRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ClusterID)
	}
	return out
}

func TestCompute(t *testing.T) {
	a := &known{key: "A", host: "h1"}
	b := &known{key: "B", host: "h3"}

	tests := []struct {
		name        string
		previous    map[string]*known
		current     map[string]clusterlink.ClusterRecord
		wantRemoved []string
		wantAdded   []string
		wantUpdated []string
	}{
		{
			name:     "host change and new cluster",
			previous: map[string]*known{"A": a},
			current: map[string]clusterlink.ClusterRecord{
				"A": online("A", "h2"),
				"B": online("B", "h3"),
			},
			wantAdded:   []string{"B"},
			wantUpdated: []string{"A"},
		},
		{
			name:        "all removed on empty current",
			previous:    map[string]*known{"A": a, "B": b},
			current:     map[string]clusterlink.ClusterRecord{},
			wantRemoved: []string{"A", "B"},
		},
		{
			name:      "all added on empty previous",
			previous:  nil,
			current:   map[string]clusterlink.ClusterRecord{"B": online("B", "h3"), "A": online("A", "h1")},
			wantAdded: []string{"A", "B"},
		},
		{
			name:     "unchanged pair excluded",
			previous: map[string]*known{"A": a},
			current:  map[string]clusterlink.ClusterRecord{"A": online("A", "h1")},
		},
		{
			name:     "informational fields are not diffed",
			previous: map[string]*known{"A": a},
			current: map[string]clusterlink.ClusterRecord{
				"A": {ClusterID: "A", HostName: "h1", IsOnline: true, HostVersion: "5.2.0", Status: "active"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Compute(tt.previous, tt.current)

			if got := keys(c.Removed); !slices.Equal(got, tt.wantRemoved) {
				t.Errorf("removed = %v, want %v", got, tt.wantRemoved)
			}
			if got := recordIDs(c.Added); !slices.Equal(got, tt.wantAdded) {
				t.Errorf("added = %v, want %v", got, tt.wantAdded)
			}
			var updated []string
			for _, u := range c.Updated {
				updated = append(updated, u.Device.Key())
			}
			if !slices.Equal(updated, tt.wantUpdated) {
				t.Errorf("updated = %v, want %v", updated, tt.wantUpdated)
			}
		})
	}
}

func TestCompute_UpdateCarriesNewRecord(t *testing.T) {
	a := &known{key: "A", host: "h1"}
	c := Compute(map[string]*known{"A": a}, map[string]clusterlink.ClusterRecord{"A": online("A", "h2")})

	if len(c.Updated) != 1 {
		t.Fatalf("updated = %d, want 1", len(c.Updated))
	}
	if c.Updated[0].Device != a {
		t.Error("update does not reference the known device")
	}
	if c.Updated[0].Record.HostName != "h2" {
		t.Errorf("update host = %q, want h2", c.Updated[0].Record.HostName)
	}
}

func TestCompute_SameTableIsEmpty(t *testing.T) {
	previous := map[string]*known{
		"A": {key: "A", host: "h1"},
		"B": {key: "B", host: "h2"},
	}
	current := map[string]clusterlink.ClusterRecord{
		"A": online("A", "h1"),
		"B": online("B", "h2"),
	}

	if c := Compute(previous, current); !c.Empty() {
		t.Errorf("diff of identical tables = %+v, want empty", c)
	}
}

func TestOnline_OfflineEqualsAbsent(t *testing.T) {
	previous := map[string]*known{"A": {key: "A", host: "h1"}}

	wentOffline := Compute(previous, Online([]clusterlink.ClusterRecord{
		{ClusterID: "A", HostName: "h1", IsOnline: false},
	}))
	vanished := Compute(previous, Online(nil))

	if got := keys(wentOffline.Removed); !slices.Equal(got, []string{"A"}) {
		t.Errorf("offline removed = %v, want [A]", got)
	}
	if got := keys(vanished.Removed); !slices.Equal(got, []string{"A"}) {
		t.Errorf("absent removed = %v, want [A]", got)
	}
}

func TestOnline_NeverAddsOfflineClusters(t *testing.T) {
	c := Compute(map[string]*known{}, Online([]clusterlink.ClusterRecord{
		{ClusterID: "A", HostName: "h1", IsOnline: false},
		online("B", "h2"),
	}))

	if got := recordIDs(c.Added); !slices.Equal(got, []string{"B"}) {
		t.Errorf("added = %v, want [B]", got)
	}
}

func FuzzCompute(f *testing.F) {
	f.Add("A,B,C", "B,C,D", "h1")

	f.Fuzz(func(t *testing.T, prevKeys, curKeys, host string) {
		previous := map[string]*known{}
		for _, k := range splitKeys(prevKeys) {
			previous[k] = &known{key: k, host: host}
		}
		current := map[string]clusterlink.ClusterRecord{}
		for i, k := range splitKeys(curKeys) {
			h := host
			if i%2 == 1 {
				h = host + "-changed"
			}
			current[k] = online(k, h)
		}

		c := Compute(previous, current)

		// Every key lands in exactly one bucket.
		seen := map[string]int{}
		for _, d := range c.Removed {
			seen[d.Key()]++
		}
		for _, r := range c.Added {
			seen[r.ClusterID]++
		}
		for _, u := range c.Updated {
			seen[u.Device.Key()]++
		}
		for k, n := range seen {
			if n != 1 {
				t.Errorf("key %q appears in %d buckets", k, n)
			}
		}
		for k := range previous {
			_, inCurrent := current[k]
			if !inCurrent && seen[k] != 1 {
				t.Errorf("key %q missing from removed", k)
			}
		}
		for k := range current {
			if _, inPrev := previous[k]; !inPrev && seen[k] != 1 {
				t.Errorf("key %q missing from added", k)
			}
		}

		// Same table twice yields nothing.
		same := map[string]clusterlink.ClusterRecord{}
		for k, d := range previous {
			same[k] = online(k, d.host)
		}
		if again := Compute(previous, same); !again.Empty() {
			t.Errorf("diff(T, T) not empty: %+v", again)
		}
	})
}

func splitKeys(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
