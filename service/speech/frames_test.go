package speech

import (
	"testing"

	"TravelRelay/global"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseControl(t *testing.T) {
	f, err := ParseControl([]byte(`{"type":"start"}`))
	require.NoError(t, err)
	assert.Equal(t, FrameStart, f.Type)

	_, err = ParseControl([]byte(`{"type":`))
	assert.Error(t, err)

	_, err = ParseControl([]byte(`{"kind":"start"}`))
	assert.Error(t, err)
}

func TestEncodeClientFrames(t *testing.T) {
	assert.JSONEq(t, `{"type":"result","text":"你好"}`, string(EncodeResult("你好")))
	assert.JSONEq(t, `{"type":"result","text":""}`, string(EncodeResult("")))
	assert.JSONEq(t, `{"type":"error","message":"boom"}`, string(EncodeError("boom")))
}

func TestEncodeUpstreamFrames(t *testing.T) {
	cfg := global.Default().Xunfei
	cfg.AppID = "app-1"

	first, err := encodeFirstFrame(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"common":{"app_id":"app-1"},
		"business":{"language":"zh_cn","domain":"iat","accent":"mandarin","vad_eos":5000,"dwa":"wpgs"},
		"data":{"status":0,"format":"audio/L16;rate=16000","encoding":"raw"}
	}`, string(first))

	audio, err := encodeAudioFrame([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"status":1,"audio":"AQID"}}`, string(audio))

	last, err := encodeLastFrame()
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"status":2}}`, string(last))
}

func TestParseUpstream(t *testing.T) {
	ev, err := parseUpstream([]byte(`{"code":0,"sid":"s","data":{"status":1,"result":{"ws":[{"cw":[{"w":"北京"},{"w":"背景"}]},{"cw":[{"w":"天气"}]},{"cw":[]}]}}}`))
	require.NoError(t, err)
	assert.True(t, ev.HasResult)
	assert.Equal(t, 1, ev.Status)
	assert.Equal(t, "北京天气", ev.Text)

	ev, err = parseUpstream([]byte(`{"code":10105,"message":"illegal access"}`))
	require.NoError(t, err)
	assert.False(t, ev.HasResult)
	assert.Equal(t, 10105, ev.Code)
	assert.Equal(t, "illegal access", ev.Message)

	ev, err = parseUpstream([]byte(`{"code":0,"data":{"status":2}}`))
	require.NoError(t, err)
	assert.False(t, ev.HasResult)

	_, err = parseUpstream([]byte(`not json`))
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateEnding.active())
	assert.False(t, StateFailed.active())
}
