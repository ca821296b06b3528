package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/vtrnguyen/orisharin-server/internal/presence"
)

type memberSource struct {
	members map[primitive.ObjectID][]string
	err     error
}

func (s *memberSource) Participants(_ context.Context, convID primitive.ObjectID) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.members[convID], nil
}

type captureConn struct {
	payloads [][]byte
}

func (c *captureConn) Deliver(payload []byte) { c.payloads = append(c.payloads, payload) }
func (c *captureConn) Close()                 {}

func (c *captureConn) lastEnvelope(t *testing.T) Envelope {
	t.Helper()
	require.NotEmpty(t, c.payloads)
	var env Envelope
	require.NoError(t, json.Unmarshal(c.payloads[len(c.payloads)-1], &env))
	return env
}

func TestBroadcastConversationReachesAllDevices(t *testing.T) {
	convID := primitive.NewObjectID()
	src := &memberSource{members: map[primitive.ObjectID][]string{
		convID: {"alice", "bob"},
	}}
	reg := presence.NewRegistry()
	alicePhone := &captureConn{}
	aliceLaptop := &captureConn{}
	bobPhone := &captureConn{}
	carolPhone := &captureConn{}
	reg.Register("alice", alicePhone)
	reg.Register("alice", aliceLaptop)
	reg.Register("bob", bobPhone)
	reg.Register("carol", carolPhone)

	d := NewDispatcher(src, reg, zap.NewNop().Sugar())
	d.BroadcastConversation(context.Background(), convID, EventMessageCreated, map[string]string{"content": "hi"})

	for _, c := range []*captureConn{alicePhone, aliceLaptop, bobPhone} {
		env := c.lastEnvelope(t)
		assert.Equal(t, EventMessageCreated, env.Event)
	}
	assert.Empty(t, carolPhone.payloads, "non-members hear nothing")
}

func TestBroadcastConversationSwallowsSourceFailure(t *testing.T) {
	src := &memberSource{err: errors.New("store down")}
	reg := presence.NewRegistry()
	c := &captureConn{}
	reg.Register("alice", c)

	d := NewDispatcher(src, reg, zap.NewNop().Sugar())
	d.BroadcastConversation(context.Background(), primitive.NewObjectID(), EventMessageCreated, nil)

	assert.Empty(t, c.payloads)
}

func TestSendToUserTargetsOneUser(t *testing.T) {
	reg := presence.NewRegistry()
	alice := &captureConn{}
	bob := &captureConn{}
	reg.Register("alice", alice)
	reg.Register("bob", bob)

	d := NewDispatcher(&memberSource{}, reg, zap.NewNop().Sugar())
	d.SendToUser("alice", EventNotification, map[string]string{"kind": "mention"})

	env := alice.lastEnvelope(t)
	assert.Equal(t, EventNotification, env.Event)
	assert.Empty(t, bob.payloads)
}

func TestBroadcastUsersOfflineIsNoop(t *testing.T) {
	d := NewDispatcher(&memberSource{}, presence.NewRegistry(), zap.NewNop().Sugar())
	// nobody connected; must not panic
	d.BroadcastUsers([]string{"ghost"}, EventTypingStart, nil)
}
