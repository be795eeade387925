package natsx

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"TravelRelay/service/speech"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "speech.transcript", subjectFor("speech.transcript", ""))
	assert.Equal(t, "speech.transcript.u-1", subjectFor("speech.transcript", "u-1"))
	assert.Equal(t, "speech.transcript.a_b__", subjectFor("speech.transcript", "a.b*>"))
}

func TestNewNatsxClient_NoServers(t *testing.T) {
	_, err := NewNatsxClient(NatsxConfig{})
	assert.Error(t, err)
}

func TestManager_NilSafe(t *testing.T) {
	var m *NatsManager
	assert.NoError(t, m.Close())
	assert.Error(t, m.PublishOnce(context.Background(), BizTranscript, "u", nil, nil, ""))
	assert.Error(t, m.RegisterRoute(NatsxRoute{Biz: "x", Subject: "y"}))
}

// 需要本地 nats-server：NATS_URL=nats://127.0.0.1:4222
func TestTranscriptPublisher_Integration(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	mgr, err := NewNatsManager(NatsxConfig{Servers: []string{url}, Name: "relay-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	prefix := "test.transcript." + time.Now().Format("150405.000")
	pub, err := NewTranscriptPublisher(mgr, prefix)
	require.NoError(t, err)

	sub, err := mgr.client.nc.SubscribeSync(prefix + ".>")
	require.NoError(t, err)
	require.NoError(t, mgr.client.nc.FlushTimeout(time.Second))

	ev := speech.TranscriptEvent{SessionID: "42", UserID: "user-1", Username: "dave", Text: "去杭州", Final: true, Ts: 1}
	require.NoError(t, pub.PublishTranscript(context.Background(), ev))

	msg, err := sub.NextMsg(3 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, subjectFor(prefix, "user-1"), msg.Subject)
	assert.NotEmpty(t, msg.Header.Get(HeaderMsgID))
	assert.Equal(t, "42", msg.Header.Get("Session-Id"))
	var decoded speech.TranscriptEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, ev, decoded)
}
