package protocol

import (
	"encoding/json"
	"strings"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// PinValue 设备回报的 pinValue 对象
type PinValue struct {
	Pin   string
	Value string
}

type statusReply struct {
	Status *string `json:"status"`
}

type pinValueReply struct {
	PinValue *struct {
		Pin     json.RawMessage `json:"pin"`
		Encoder json.RawMessage `json:"encoder"`
		Value   json.RawMessage `json:"value"`
	} `json:"pinValue"`
}

// IsAck 应答是否为 "{}"
func IsAck(line string) bool {
	return strings.TrimSpace(line) == Ack
}

// ParseStatus 取出握手应答中的 status 字段
func ParseStatus(line string) (string, error) {
	var r statusReply
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return "", errors.NewCommonEdgeX(errors.KindContractInvalid, "status reply is not JSON: "+quote(line), err)
	}
	if r.Status == nil {
		return "", errors.NewCommonEdgeX(errors.KindContractInvalid, "status reply has no status field: "+quote(line), nil)
	}
	return *r.Status, nil
}

// ParsePinValue 解析读请求的应答，pin 与 value 统一转成文本
func ParsePinValue(line string) (PinValue, error) {
	var r pinValueReply
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return PinValue{}, errors.NewCommonEdgeX(errors.KindContractInvalid, "read reply is not JSON: "+quote(line), err)
	}
	if r.PinValue == nil {
		return PinValue{}, errors.NewCommonEdgeX(errors.KindContractInvalid, "read reply has no pinValue: "+quote(line), nil)
	}
	pin := r.PinValue.Pin
	if len(pin) == 0 && len(r.PinValue.Encoder) != 0 {
		// 编码器应答按保留引脚名回报
		pin = json.RawMessage(`"` + EncoderPin + `"`)
	}
	if len(pin) == 0 || len(r.PinValue.Value) == 0 {
		return PinValue{}, errors.NewCommonEdgeX(errors.KindContractInvalid, "pinValue missing pin or value: "+quote(line), nil)
	}
	p, err := text(pin)
	if err != nil {
		return PinValue{}, errors.NewCommonEdgeX(errors.KindContractInvalid, "bad pin in "+quote(line), err)
	}
	v, err := text(r.PinValue.Value)
	if err != nil {
		return PinValue{}, errors.NewCommonEdgeX(errors.KindContractInvalid, "bad value in "+quote(line), err)
	}
	return PinValue{Pin: p, Value: v}, nil
}

// text 字符串去掉引号，数字/布尔保持字面
func text(raw json.RawMessage) (string, error) {
	if string(raw) == "null" {
		return "", errors.NewCommonEdgeX(errors.KindContractInvalid, "null field", nil)
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return "", err
	}
	if b {
		return "1", nil
	}
	return "0", nil
}

func quote(line string) string {
	return "'" + line + "'"
}
