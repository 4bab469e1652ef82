package serial

import (
	"fmt"
	"time"

	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/tarm/serial"
)

// UARTPort 全双工串口，USB CDC 与 RS-232 共用
type UARTPort struct {
	cfg  config.Port
	conn *serial.Port
}

func NewUARTPort(cfg config.Port) Port {
	return &UARTPort{cfg: cfg}
}

// tarmConfig 读超时即 LineTransport 判定"设备无应答"的时限
func tarmConfig(cfg config.Port) *serial.Config {
	return &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baudrate,
		ReadTimeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
	}
}

func (u *UARTPort) Open() error {
	conn, err := serial.OpenPort(tarmConfig(u.cfg))
	if err != nil {
		return fmt.Errorf("%s @ %d baud: %w", u.cfg.Device, u.cfg.Baudrate, err)
	}
	u.conn = conn
	return nil
}

func (u *UARTPort) Close() error {
	if u.conn == nil {
		return nil
	}
	// 不清空 conn：翻译循环可能仍在 Read，关闭后它会收到错误返回
	return u.conn.Close()
}

func (u *UARTPort) Read(p []byte) (int, error) {
	if u.conn == nil {
		return 0, errNotOpen(u.cfg)
	}
	return u.conn.Read(p)
}

func (u *UARTPort) Write(p []byte) (int, error) {
	if u.conn == nil {
		return 0, errNotOpen(u.cfg)
	}
	return u.conn.Write(p)
}

func (u *UARTPort) Flush() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Flush()
}

func (u *UARTPort) Name() string {
	return u.cfg.Name
}

func errNotOpen(cfg config.Port) error {
	return fmt.Errorf("port %s (%s) is not open", cfg.Name, cfg.Device)
}
