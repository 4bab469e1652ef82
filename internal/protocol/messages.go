// Package protocol 构造并解析单片机 JSON 行协议的报文。
//
// 每类报文由一个带类型参数的构造函数生成，不做字符串模板替换。
package protocol

import (
	"encoding/json"
	"strconv"
)

const (
	// Ack 设备对写类命令的唯一合法应答
	Ack = "{}"
	// StatusReady 握手时设备就绪的状态值
	StatusReady = "ready"
	// EncoderPin 保留的编码器回报引脚
	EncoderPin = "encoder"

	encoderChannel = 100
)

// Scalar 引脚号或取值：形如整数的按 JSON 数字输出，其余按字符串输出
type Scalar string

func (s Scalar) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(s), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(s))
}

type statusQuery struct {
	Query string `json:"query"`
}

type pinModeCommand struct {
	Command string `json:"command"`
	Pin     Scalar `json:"pin"`
	Mode    string `json:"mode"`
}

type writeCommand struct {
	Command string `json:"command"`
	Pin     Scalar `json:"pin"`
	Type    string `json:"type"`
	Value   Scalar `json:"value"`
}

type readQuery struct {
	Query   string `json:"query"`
	Pin     Scalar `json:"pin,omitempty"`
	Encoder int    `json:"encoder,omitempty"`
	Type    string `json:"type"`
}

type toneCommand struct {
	Command   string `json:"command"`
	Frequency Scalar `json:"frequency"`
	Duration  Scalar `json:"duration"`
}

type servoCommand struct {
	Command string `json:"command"`
	Degrees Scalar `json:"degrees"`
}

// StatusQuery {"query":"status"}
func StatusQuery() []byte {
	return mustMarshal(statusQuery{Query: "status"})
}

// PinMode 设置引脚方向
func PinMode(pin, mode string) []byte {
	return mustMarshal(pinModeCommand{Command: "pinMode", Pin: Scalar(pin), Mode: mode})
}

// WritePin 向引脚写值
func WritePin(pin, valueType, value string) []byte {
	return mustMarshal(writeCommand{Command: "write", Pin: Scalar(pin), Type: valueType, Value: Scalar(value)})
}

// ReadPin 读取引脚当前值；EncoderPin 走编码器通道
func ReadPin(pin, valueType string) []byte {
	q := readQuery{Query: "read", Type: valueType}
	if pin == EncoderPin {
		q.Encoder = encoderChannel
	} else {
		q.Pin = Scalar(pin)
	}
	return mustMarshal(q)
}

// Tone 蜂鸣器：频率(Hz) + 时长(ms)
func Tone(frequency, duration string) []byte {
	return mustMarshal(toneCommand{Command: "tone", Frequency: Scalar(frequency), Duration: Scalar(duration)})
}

// Servo 舵机角度
func Servo(degrees string) []byte {
	return mustMarshal(servoCommand{Command: "servo", Degrees: Scalar(degrees)})
}

// 以上结构体只含字符串与整数字段，编码不会失败
func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
