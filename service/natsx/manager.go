package natsx

import (
	"context"
	"fmt"

	"TravelRelay/global"
)

// NatsManager 统一门面：对外只暴露这一个对象来用
type NatsManager struct {
	client   *NatsxClient
	producer *NatsxProducer
}

// NewNatsManager 初始化
func NewNatsManager(cfg NatsxConfig) (*NatsManager, error) {
	c, err := NewNatsxClient(cfg)
	if err != nil {
		return nil, err
	}
	return &NatsManager{
		client:   c,
		producer: NewNatsxProducer(c),
	}, nil
}

// ConfigFrom 进程配置 -> 客户端配置
func ConfigFrom(c global.NatsConfig) NatsxConfig {
	return NatsxConfig{
		Servers:       []string{c.URL},
		Name:          c.Name,
		User:          c.User,
		Password:      c.Password,
		ReconnectWait: c.ReconnectWait,
		Timeout:       c.Timeout,
	}
}

// Close 释放资源（优雅关闭订阅与连接）
func (m *NatsManager) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *NatsManager) RegisterRoute(r NatsxRoute) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("manager not initialized")
	}
	return m.client.RegisterRoute(r)
}

// PublishOnce 生产消息（带 Nats-Msg-Id 去重）
func (m *NatsManager) PublishOnce(ctx context.Context, biz, token string, data []byte, hdr map[string]string, msgID string) error {
	if m == nil || m.producer == nil {
		return fmt.Errorf("manager not initialized")
	}
	return m.producer.PublishOnce(ctx, biz, token, data, hdr, msgID)
}
