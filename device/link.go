package device

import (
	"strings"
)

// Link is the downstream connection a device represents.
// Production: cloudapi.StatusLink
// Testing: fake.Link that records Up/Down calls
type Link interface {
	Up()
	Down()
}

// Closer is implemented by links holding resources beyond the connection itself.
type Closer interface {
	Close() error
}

// Matcher reports whether a local network key refers to a cluster with the given host name.
type Matcher func(hostName, networkKey string) bool

// HostNamePrefix matches network keys that start with the host name.
// A key like "ultimakersystem-ccbdd30044ec._ultimaker._tcp.local." matches
// host name "ultimakersystem-ccbdd30044ec".
func HostNamePrefix(hostName, networkKey string) bool {
	if hostName == "" || networkKey == "" {
		return false
	}
	return strings.HasPrefix(networkKey, hostName)
}

type nopLink struct{}

func (nopLink) Up()   {}
func (nopLink) Down() {}
