package speech

import (
	"encoding/base64"
	"encoding/json"

	"TravelRelay/global"
	"TravelRelay/tools/errs"
)

// —— 客户端帧 ——

const (
	FrameStart  = "start"
	FrameEnd    = "end"
	FrameResult = "result"
	FrameError  = "error"
)

// ControlFrame 客户端上行的文本控制帧 {"type":"start"|"end"}
type ControlFrame struct {
	Type string `json:"type"`
}

type ResultFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func ParseControl(raw []byte) (ControlFrame, error) {
	var f ControlFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, errs.ErrArgs.WrapMsg("control frame is not json", "err", err)
	}
	if f.Type == "" {
		return f, errs.ErrArgs.WrapMsg("control frame missing type")
	}
	return f, nil
}

func EncodeResult(text string) []byte {
	b, _ := json.Marshal(ResultFrame{Type: FrameResult, Text: text})
	return b
}

func EncodeError(message string) []byte {
	b, _ := json.Marshal(ErrorFrame{Type: FrameError, Message: message})
	return b
}

// —— 上游帧（讯飞 IAT）——

// 上游 data.status
const (
	statusFirst    = 0
	statusContinue = 1
	statusLast     = 2
)

type firstFrame struct {
	Common   commonParams   `json:"common"`
	Business businessParams `json:"business"`
	Data     firstData      `json:"data"`
}

type commonParams struct {
	AppID string `json:"app_id"`
}

type businessParams struct {
	Language string `json:"language"`
	Domain   string `json:"domain"`
	Accent   string `json:"accent"`
	VadEos   int    `json:"vad_eos"`
	Dwa      string `json:"dwa,omitempty"`
}

type firstData struct {
	Status   int    `json:"status"`
	Format   string `json:"format"`
	Encoding string `json:"encoding"`
}

type audioFrame struct {
	Data audioData `json:"data"`
}

type audioData struct {
	Status int    `json:"status"`
	Audio  string `json:"audio,omitempty"`
}

func encodeFirstFrame(cfg global.XunfeiConfig) ([]byte, error) {
	return json.Marshal(firstFrame{
		Common: commonParams{AppID: cfg.AppID},
		Business: businessParams{
			Language: cfg.Language,
			Domain:   cfg.Domain,
			Accent:   cfg.Accent,
			VadEos:   cfg.VadEos,
			Dwa:      cfg.Dwa,
		},
		Data: firstData{
			Status:   statusFirst,
			Format:   cfg.Format,
			Encoding: cfg.Encoding,
		},
	})
}

func encodeAudioFrame(chunk []byte) ([]byte, error) {
	return json.Marshal(audioFrame{Data: audioData{
		Status: statusContinue,
		Audio:  base64.StdEncoding.EncodeToString(chunk),
	}})
}

func encodeLastFrame() ([]byte, error) {
	return json.Marshal(audioFrame{Data: audioData{Status: statusLast}})
}

type upstreamMessage struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Sid     string        `json:"sid"`
	Data    *upstreamData `json:"data"`
}

type upstreamData struct {
	Status *int            `json:"status"`
	Result *upstreamResult `json:"result"`
}

type upstreamResult struct {
	Ws []struct {
		Cw []struct {
			W string `json:"w"`
		} `json:"cw"`
	} `json:"ws"`
}

// upstreamEvent 解析后的上游消息
type upstreamEvent struct {
	Code    int
	Message string
	Sid     string

	HasResult bool
	Status    int
	Text      string
}

// parseUpstream 只在 JSON 本身损坏时返回错误；缺 data/result 的消息视为无结果
func parseUpstream(raw []byte) (upstreamEvent, error) {
	var msg upstreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return upstreamEvent{}, err
	}
	ev := upstreamEvent{Code: msg.Code, Message: msg.Message, Sid: msg.Sid}
	if msg.Code != 0 || msg.Data == nil || msg.Data.Result == nil || msg.Data.Status == nil {
		return ev, nil
	}

	ev.HasResult = true
	ev.Status = *msg.Data.Status
	var text []byte
	for _, ws := range msg.Data.Result.Ws {
		// 只取每个词位的首选候选
		if len(ws.Cw) > 0 {
			text = append(text, ws.Cw[0].W...)
		}
	}
	ev.Text = string(text)
	return ev, nil
}
