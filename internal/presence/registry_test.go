package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubConn struct {
	mu       sync.Mutex
	payloads [][]byte
	closed   bool
}

func (c *stubConn) Deliver(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
}

func (c *stubConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *stubConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestRegisterMultipleDevices(t *testing.T) {
	r := NewRegistry()
	phone := &stubConn{}
	laptop := &stubConn{}

	r.Register("alice", phone)
	r.Register("alice", laptop)

	assert.True(t, r.Online("alice"))
	assert.Len(t, r.ConnectionsFor("alice"), 2)
	assert.False(t, r.Online("bob"))
	assert.Nil(t, r.ConnectionsFor("bob"))
}

func TestUnregisterRemovesEmptyEntry(t *testing.T) {
	r := NewRegistry()
	phone := &stubConn{}
	laptop := &stubConn{}
	r.Register("alice", phone)
	r.Register("alice", laptop)

	r.Unregister("alice", phone)
	assert.True(t, r.Online("alice"), "still online from the other device")

	r.Unregister("alice", laptop)
	assert.False(t, r.Online("alice"))

	// unknown pairs are a no-op
	r.Unregister("alice", phone)
	r.Unregister("bob", phone)
}

func TestSnapshotIsDetached(t *testing.T) {
	r := NewRegistry()
	c := &stubConn{}
	r.Register("alice", c)

	snap := r.ConnectionsFor("alice")
	r.Unregister("alice", c)

	assert.Len(t, snap, 1, "snapshot outlives the registration")
}

func TestDrainClosesEverything(t *testing.T) {
	r := NewRegistry()
	conns := []*stubConn{{}, {}, {}}
	r.Register("alice", conns[0])
	r.Register("alice", conns[1])
	r.Register("bob", conns[2])

	r.Drain()

	for _, c := range conns {
		assert.True(t, c.isClosed())
	}
	assert.False(t, r.Online("alice"))
	assert.False(t, r.Online("bob"))
}

func TestConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	users := []string{"alice", "bob", "carol"}

	for _, u := range users {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				c := &stubConn{}
				r.Register(user, c)
				r.Online(user)
				for _, conn := range r.ConnectionsFor(user) {
					conn.Deliver([]byte("x"))
				}
				r.Unregister(user, c)
			}(u)
		}
	}
	wg.Wait()

	for _, u := range users {
		assert.False(t, r.Online(u))
	}
}
