package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
)

const (
	reconnectInterval = 5 * time.Second
	// 发布/订阅等待确认的上限，超时按通信错误处理
	ackTimeout = 5 * time.Second
)

// Bus 镜像所需的最小消息总线能力，便于测试替换
type Bus interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func([]byte)) error
	Disconnect(quiesce uint)
}

// ClientOptions 由配置中的 MQTT 段生成
type ClientOptions struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	Qos            byte
}

func OptionsFromConfig(c config.MQTT) ClientOptions {
	return ClientOptions{
		Broker:         c.Broker,
		ClientID:       c.ClientID,
		Username:       c.Username,
		Password:       c.Password,
		KeepAlive:      time.Duration(c.KeepAliveSec) * time.Second,
		ConnectTimeout: time.Duration(c.ConnectTimeoutSec) * time.Second,
		Qos:            c.Qos,
	}
}

func (o ClientOptions) pahoOptions() *paho.ClientOptions {
	po := paho.NewClientOptions()
	po.AddBroker(o.Broker)
	po.SetClientID(o.ClientID)
	po.SetKeepAlive(o.KeepAlive)
	po.SetCleanSession(true)
	po.SetAutoReconnect(true)
	po.SetConnectRetryInterval(reconnectInterval)
	if o.Username != "" {
		po.SetUsername(o.Username)
		po.SetPassword(o.Password)
	}
	return po
}

// Client 基于 Paho 的 Bus 实现，断线后由 Paho 自动重连
type Client struct {
	conn paho.Client
	qos  byte
}

// NewClient 创建客户端并在 ConnectTimeout 内完成首次连接
func NewClient(opts ClientOptions) (*Client, error) {
	c := &Client{conn: paho.NewClient(opts.pahoOptions()), qos: opts.Qos}
	if err := await(c.conn.Connect(), opts.ConnectTimeout, "connect to "+opts.Broker); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Publish(topic string, payload []byte) error {
	return await(c.conn.Publish(topic, c.qos, false, payload), ackTimeout, "publish to "+topic)
}

// Subscribe handler 收到原始负载
func (c *Client) Subscribe(topic string, handler func([]byte)) error {
	tok := c.conn.Subscribe(topic, c.qos, func(_ paho.Client, m paho.Message) {
		handler(m.Payload())
	})
	return await(tok, ackTimeout, "subscribe to "+topic)
}

func (c *Client) Disconnect(quiesce uint) {
	c.conn.Disconnect(quiesce)
}

func await(tok paho.Token, timeout time.Duration, what string) error {
	if !tok.WaitTimeout(timeout) {
		return errors.NewCommonEdgeX(errors.KindCommunicationError, "mqtt "+what+" timed out after "+timeout.String(), nil)
	}
	if err := tok.Error(); err != nil {
		return errors.NewCommonEdgeX(errors.KindCommunicationError, "mqtt "+what, err)
	}
	return nil
}
