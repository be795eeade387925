package natsx

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const HeaderMsgID = "Nats-Msg-Id"

// NatsxProducer 生产端
type NatsxProducer struct{ c *NatsxClient }

func NewNatsxProducer(c *NatsxClient) *NatsxProducer { return &NatsxProducer{c: c} }

// Publish 按 Biz 路由发送；token 非空时发到 route.Subject.token
func (p *NatsxProducer) Publish(ctx context.Context, biz, token string, data []byte, hdr map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, ok := p.c.route(biz)
	if !ok {
		return fmt.Errorf("route not found: %s", biz)
	}
	if err := p.c.sendCore(subjectFor(r.Subject, token), data, hdr); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// PublishOnce 带 Nats-Msg-Id 发布，msgID 为空则自动生成，便于下游去重
func (p *NatsxProducer) PublishOnce(ctx context.Context, biz, token string, data []byte, hdr map[string]string, msgID string) error {
	if hdr == nil {
		hdr = map[string]string{}
	}
	if msgID == "" {
		msgID = uuid.NewString()
	}
	hdr[HeaderMsgID] = msgID
	return p.Publish(ctx, biz, token, data, hdr)
}
