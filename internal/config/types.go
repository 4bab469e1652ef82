package config

import "gopkg.in/yaml.v2"

// Port 描述与单片机相连的串口
type Port struct {
	Name      string `yaml:"name"`      // 逻辑名称
	Device    string `yaml:"device"`    // 串口设备节点
	Type      string `yaml:"type"`      // uart/rs232/rs485
	Baudrate  int    `yaml:"baudrate"`  // 波特率
	DEPin     int    `yaml:"dePin"`     // RS-485 DE/RE 控制 GPIO 编号
	TimeoutMs int    `yaml:"timeoutMs"` // 读操作超时（毫秒）
}

// HTTPServer 面向客户端的 HTTP 监听参数
type HTTPServer struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Device 设备握手与轮询节奏
type Device struct {
	HandshakeAttempts   int `yaml:"handshakeAttempts"`
	HandshakeIntervalMs int `yaml:"handshakeIntervalMs"`
	PollIntervalMs      int `yaml:"pollIntervalMs"` // 0 表示不限速
}

// SpecialProcessing 舵机/蜂鸣器占用定时器后的 PWM 兼容处理开关
type SpecialProcessing struct {
	EnableSpecialLEDProcessing string `yaml:"enableSpecialLEDProcessing"`
}

// MQTT 可选的 MQTT 镜像，Broker 为空则不启用
type MQTT struct {
	Broker            string `yaml:"broker"`
	ClientID          string `yaml:"clientId"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	ReportTopic       string `yaml:"reportTopic"`
	CommandTopic      string `yaml:"commandTopic"`
	ResponseTopic     string `yaml:"responseTopic"`
	PublishIntervalMs int    `yaml:"publishIntervalMs"`
	KeepAliveSec      int    `yaml:"keepAliveSec"`
	ConnectTimeoutSec int    `yaml:"connectTimeoutSec"`
	Qos               byte   `yaml:"qos"`
}

// Logging 日志级别
type Logging struct {
	Level string `yaml:"level"`
}

// BridgeConfig 汇总了串口、HTTP、引脚表、命令表等全部配置。
// 各张表使用 yaml.MapSlice 以保留文件中的顺序（轮询顺序依赖它）。
type BridgeConfig struct {
	Serial              Port              `yaml:"Serial"`
	HTTPServer          HTTPServer        `yaml:"HTTPServer"`
	Device              Device            `yaml:"Device"`
	PinDirections       yaml.MapSlice     `yaml:"PinDirections"`
	InitialOutputValues yaml.MapSlice     `yaml:"InitialOutputValues"`
	ReporterMap         yaml.MapSlice     `yaml:"ReporterMap"`
	ReporterTypes       yaml.MapSlice     `yaml:"ReporterTypes"`
	CommandPinMap       yaml.MapSlice     `yaml:"CommandPinMap"`
	SpecialProcessing   SpecialProcessing `yaml:"SpecialProcessing"`
	MQTT                MQTT              `yaml:"MQTT"`
	Logging             Logging           `yaml:"Logging"`
}
