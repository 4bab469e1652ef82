package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

const (
	DefaultSerialDevice      = "/dev/ttyACM0"
	DefaultBaudrate          = 115200
	DefaultTimeoutMs         = 2000
	DefaultHTTPPort          = 50209
	DefaultHandshakeAttempts = 5
	DefaultPublishIntervalMs = 1000
)

// LoadConfig 从指定 YAML 文件读取并解析桥接配置
func LoadConfig(path string) (*BridgeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse 反序列化 YAML 并补齐缺省值
func Parse(data []byte) (*BridgeConfig, error) {
	cfg := struct {
		Bridge BridgeConfig `yaml:"Bridge"`
	}{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	b := &cfg.Bridge
	applyDefaults(b)
	if err := validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

func applyDefaults(b *BridgeConfig) {
	if b.Serial.Name == "" {
		b.Serial.Name = "arduino"
	}
	if b.Serial.Device == "" {
		b.Serial.Device = DefaultSerialDevice
	}
	if b.Serial.Type == "" {
		b.Serial.Type = "uart"
	}
	if b.Serial.Baudrate == 0 {
		b.Serial.Baudrate = DefaultBaudrate
	}
	if b.Serial.TimeoutMs == 0 {
		b.Serial.TimeoutMs = DefaultTimeoutMs
	}
	if b.HTTPServer.Host == "" {
		b.HTTPServer.Host = "localhost"
	}
	if b.HTTPServer.Port == 0 {
		b.HTTPServer.Port = DefaultHTTPPort
	}
	if b.Device.HandshakeAttempts == 0 {
		b.Device.HandshakeAttempts = DefaultHandshakeAttempts
	}
	if b.Logging.Level == "" {
		b.Logging.Level = "INFO"
	}
	if b.MQTT.Broker != "" {
		if b.MQTT.ClientID == "" {
			b.MQTT.ClientID = "device-s2a"
		}
		if b.MQTT.PublishIntervalMs == 0 {
			b.MQTT.PublishIntervalMs = DefaultPublishIntervalMs
		}
		if b.MQTT.KeepAliveSec == 0 {
			b.MQTT.KeepAliveSec = 60
		}
		if b.MQTT.ConnectTimeoutSec == 0 {
			b.MQTT.ConnectTimeoutSec = 10
		}
	}
}

func validate(b *BridgeConfig) error {
	if b.Serial.Baudrate < 0 || b.Serial.TimeoutMs < 0 {
		return fmt.Errorf("invalid serial settings: baudrate=%d timeoutMs=%d", b.Serial.Baudrate, b.Serial.TimeoutMs)
	}
	if b.HTTPServer.Port < 0 || b.HTTPServer.Port > 65535 {
		return fmt.Errorf("invalid HTTP port %d", b.HTTPServer.Port)
	}
	if b.Device.HandshakeAttempts < 0 {
		return fmt.Errorf("invalid handshake attempts %d", b.Device.HandshakeAttempts)
	}
	if b.Device.PollIntervalMs < 0 || b.Device.HandshakeIntervalMs < 0 {
		return fmt.Errorf("poll and handshake intervals must not be negative")
	}
	switch b.Logging.Level {
	case "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level %q", b.Logging.Level)
	}
	if b.MQTT.Broker != "" && b.MQTT.ReportTopic == "" && b.MQTT.CommandTopic == "" {
		return fmt.Errorf("mqtt broker %s configured without reportTopic or commandTopic", b.MQTT.Broker)
	}
	return nil
}
