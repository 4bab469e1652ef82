package serial

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/tarm/serial"
)

const sysfsGPIO = "/sys/class/gpio"

// RS485Port 半双工串口：每次 Write 前拉高 DE/RE，写完等比特发出后拉低回到接收
type RS485Port struct {
	cfg  config.Port
	port *serial.Port
	de   *dePin
}

func NewRS485Port(cfg config.Port) Port {
	return &RS485Port{cfg: cfg, de: &dePin{num: cfg.DEPin}}
}

func (r *RS485Port) Open() error {
	if err := r.de.open(); err != nil {
		return fmt.Errorf("DE/RE GPIO %d: %w", r.cfg.DEPin, err)
	}
	p, err := serial.OpenPort(tarmConfig(r.cfg))
	if err != nil {
		r.de.close()
		return fmt.Errorf("open RS-485 %s failed: %w", r.cfg.Device, err)
	}
	r.port = p
	return nil
}

func (r *RS485Port) Close() error {
	var firstErr error
	if r.port != nil {
		firstErr = r.port.Close()
	}
	if err := r.de.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (r *RS485Port) Read(p []byte) (int, error) {
	if r.port == nil {
		return 0, errNotOpen(r.cfg)
	}
	return r.port.Read(p)
}

func (r *RS485Port) Write(p []byte) (int, error) {
	if r.port == nil {
		return 0, errNotOpen(r.cfg)
	}
	if err := r.de.set(true); err != nil {
		return 0, err
	}
	time.Sleep(5 * time.Millisecond)

	n, err := r.port.Write(p)
	if err != nil {
		r.de.set(false)
		return n, fmt.Errorf("RS-485 write failed: %w", err)
	}
	time.Sleep(txDuration(n, r.cfg.Baudrate))
	return n, r.de.set(false)
}

func (r *RS485Port) Flush() error {
	if r.port == nil {
		return nil
	}
	return r.port.Flush()
}

func (r *RS485Port) Name() string {
	return r.cfg.Name
}

// txDuration 每字节按 10 比特（起始位 + 8 数据位 + 停止位）估算发送时间
func txDuration(n, baud int) time.Duration {
	if baud <= 0 {
		return 0
	}
	return time.Duration(n*10) * time.Second / time.Duration(baud)
}

// dePin 通过 sysfs 控制的 DE/RE 引脚，低电平为接收
type dePin struct {
	num int
	fd  *os.File
}

func (d *dePin) open() error {
	export, err := os.OpenFile(sysfsGPIO+"/export", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, _ = export.WriteString(strconv.Itoa(d.num)) // 已导出时写入会失败，忽略
	export.Close()
	// 等待 sysfs 节点生成
	time.Sleep(100 * time.Millisecond)

	base := fmt.Sprintf("%s/gpio%d", sysfsGPIO, d.num)
	if err := os.WriteFile(base+"/direction", []byte("out"), 0); err != nil {
		return fmt.Errorf("set direction: %w", err)
	}
	fd, err := os.OpenFile(base+"/value", os.O_RDWR, 0)
	if err != nil {
		return err
	}
	d.fd = fd
	return d.set(false)
}

func (d *dePin) set(transmit bool) error {
	if d.fd == nil {
		return fmt.Errorf("GPIO %d not opened", d.num)
	}
	level := "0"
	if transmit {
		level = "1"
	}
	if _, err := d.fd.WriteString(level); err != nil {
		return fmt.Errorf("GPIO %d write %s: %w", d.num, level, err)
	}
	return nil
}

func (d *dePin) close() error {
	if d.fd == nil {
		return nil
	}
	err := d.fd.Close()
	d.fd = nil
	return err
}
