package translator

import (
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/linjuya-lu/device_s2a_go/internal/protocol"
	"github.com/linjuya-lu/device_s2a_go/internal/state"
)

const digitalType = "digital"

// render 把一条已入队命令转成设备报文。
// 蜂鸣器/舵机命令会置位兼容标志；置位后若兼容策略开启，
// 通用写命令一律按数字量 0/1 下发，避免与被占用定时器的 PWM 冲突。
func (t *Translator) render(cmd state.ParsedCommand) ([]byte, error) {
	p := cmd.Params
	switch cmd.Name {
	case config.ToneCommand:
		if len(p) != 2 {
			return nil, badParams(cmd)
		}
		t.shared.MarkToneOrServo()
		return protocol.Tone(p[0], p[1]), nil

	case config.ServoCommand:
		if len(p) != 1 {
			return nil, badParams(cmd)
		}
		t.shared.MarkToneOrServo()
		return protocol.Servo(p[0]), nil
	}

	if len(p) == 0 {
		return nil, badParams(cmd)
	}
	pin, value := cmd.Pin, p[0]
	if config.IsParamPin(pin) {
		if len(p) < 2 {
			return nil, badParams(cmd)
		}
		pin, value = p[0], p[len(p)-1]
	}
	valueType := cmd.ValueType
	if t.catalog.CompatibilityPolicy && t.shared.ToneOrServoActive() {
		value = digitalLevel(value)
		valueType = digitalType
	}
	return protocol.WritePin(pin, valueType, value), nil
}

// digitalLevel "0" 保持 0，其余一律为 1
func digitalLevel(v string) string {
	if v == "0" {
		return "0"
	}
	return "1"
}

func badParams(cmd state.ParsedCommand) error {
	return errors.NewCommonEdgeX(errors.KindContractInvalid, "malformed queued command "+cmd.Path, nil)
}
