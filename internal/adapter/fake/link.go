package fake

import (
	"sync"

	"clusterlink"
	"clusterlink/device"
)

// Links hands out recording device links and keeps a shared call log.
// Each entry is "<Method> <key>".
type Links struct {
	CallRecorder

	CloseErr func(key string) error

	mu    sync.Mutex
	links map[string]*Link
}

func NewLinks() *Links {
	return &Links{links: make(map[string]*Link)}
}

// Factory builds devices wired to recording links.
func (l *Links) Factory(rec clusterlink.ClusterRecord) *device.Device {
	return device.New(rec.ClusterID, rec.HostName, device.WithLink(l.For(rec.ClusterID)))
}

// For returns the link for key, creating it on first use.
func (l *Links) For(key string) *Link {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lk, ok := l.links[key]; ok {
		return lk
	}
	lk := &Link{key: key, parent: l}
	l.links[key] = lk
	return lk
}

var _ device.Link = (*Link)(nil)

// Link records Up, Down and Close calls for one device.
type Link struct {
	key    string
	parent *Links
}

func (l *Link) Up()   { l.parent.record("Up", l.key) }
func (l *Link) Down() { l.parent.record("Down", l.key) }

func (l *Link) Close() error {
	l.parent.record("Close", l.key)
	if l.parent.CloseErr != nil {
		return l.parent.CloseErr(l.key)
	}
	return nil
}

// CallsFor returns the methods called on key's link, in order.
func (l *Links) CallsFor(key string) []string {
	var out []string
	for _, c := range l.Calls("") {
		if len(c.Args) == 1 && c.Args[0] == key {
			out = append(out, c.Method)
		}
	}
	return out
}
