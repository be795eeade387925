package natsx

import (
	"context"
	"encoding/json"
	"strconv"

	"TravelRelay/service/speech"
)

const BizTranscript = "speech.transcript"

// TranscriptPublisher 把最终识别结果发到 {prefix}.{userId}
type TranscriptPublisher struct {
	mgr *NatsManager
}

// NewTranscriptPublisher 注册转写路由
func NewTranscriptPublisher(mgr *NatsManager, subjectPrefix string) (*TranscriptPublisher, error) {
	if subjectPrefix == "" {
		subjectPrefix = BizTranscript
	}
	if err := mgr.RegisterRoute(NatsxRoute{Biz: BizTranscript, Subject: subjectPrefix}); err != nil {
		return nil, err
	}
	return &TranscriptPublisher{mgr: mgr}, nil
}

func (p *TranscriptPublisher) PublishTranscript(ctx context.Context, ev speech.TranscriptEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	hdr := map[string]string{
		"Session-Id": ev.SessionID,
		"Final":      strconv.FormatBool(ev.Final),
	}
	return p.mgr.PublishOnce(ctx, BizTranscript, ev.UserID, data, hdr, "")
}
