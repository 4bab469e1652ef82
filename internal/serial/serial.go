// internal/serial/serial.go

package serial

import (
	"fmt"

	"github.com/linjuya-lu/device_s2a_go/internal/config"
)

// Port 是整个 serial 包对外暴露的通用串口接口
type Port interface {
	Open() error
	Close() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// Flush 丢弃收发缓冲区中尚未处理的数据
	Flush() error
	Name() string
}

// NewPort 根据配置创建对应的串口实现（UART / RS-232 / RS-485）
func NewPort(cfg config.Port) (Port, error) {
	switch cfg.Type {
	case "uart", "rs232":
		return NewUARTPort(cfg), nil
	case "rs485":
		return NewRS485Port(cfg), nil
	default:
		return nil, fmt.Errorf("unknown port type %s", cfg.Type)
	}
}
