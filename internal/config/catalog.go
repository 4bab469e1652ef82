package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// 保留命令名：参数形态固定，不走通用的 pin/type/value 渲染
const (
	ToneCommand  = "piezo_tone"    // 频率, 时长
	ServoCommand = "servo_degrees" // 角度

	// ParamPin 出现在 CommandPinMap 的引脚位时，表示引脚由第一个路径参数给出
	ParamPin = "*"
)

// reservedParamCounts 保留命令的参数个数
var reservedParamCounts = map[string]int{
	ToneCommand:  2,
	ServoCommand: 1,
}

type PinDirective struct {
	Pin  string
	Mode string // input / output
}

type InitialOutput struct {
	Pin       string
	ValueType string // digital / analog ...
	Value     string
}

type Reporter struct {
	Pin       string
	Label     string
	ValueType string
}

// CommandSpec 一条客户端命令到设备引脚的映射
type CommandSpec struct {
	Name       string
	Pin        string // ParamPin 表示取自路径参数
	ParamCount int
	ValueType  string
	FixedValue string // ParamCount 为 0 时写入的值
}

// PinFromParams 引脚是否由路径参数给出
func (c CommandSpec) PinFromParams() bool {
	return IsParamPin(c.Pin)
}

// IsParamPin 命令表引脚位为 ParamPin 时，引脚取自第一个路径参数
func IsParamPin(pin string) bool {
	return pin == ParamPin
}

// Catalog 启动时构建一次的只读查找表
type Catalog struct {
	PinDirectives       []PinDirective
	InitialOutputs      []InitialOutput
	Reporters           []Reporter // 轮询顺序
	CompatibilityPolicy bool

	reportersByPin map[string]Reporter
	commands       map[string]CommandSpec
}

// NewCatalog 校验配置并构建 Catalog
func NewCatalog(b *BridgeConfig) (*Catalog, error) {
	c := &Catalog{
		reportersByPin:      make(map[string]Reporter),
		commands:            make(map[string]CommandSpec),
		CompatibilityPolicy: parsePolicy(b.SpecialProcessing.EnableSpecialLEDProcessing),
	}

	for _, item := range b.PinDirections {
		pin, mode := str(item.Key), strings.ToLower(str(item.Value))
		if mode != "input" && mode != "output" {
			return nil, fmt.Errorf("pin %s: invalid direction %q", pin, mode)
		}
		c.PinDirectives = append(c.PinDirectives, PinDirective{Pin: pin, Mode: mode})
	}

	for _, item := range b.InitialOutputValues {
		pin := str(item.Key)
		typ, val, ok := strings.Cut(str(item.Value), ",")
		if !ok || strings.TrimSpace(typ) == "" || strings.TrimSpace(val) == "" {
			return nil, fmt.Errorf("pin %s: initial value must be \"<type>,<value>\", got %q", pin, str(item.Value))
		}
		c.InitialOutputs = append(c.InitialOutputs, InitialOutput{
			Pin:       pin,
			ValueType: strings.TrimSpace(typ),
			Value:     strings.TrimSpace(val),
		})
	}

	labels := toMap(b.ReporterMap)
	seen := make(map[string]bool)
	for _, item := range b.ReporterTypes {
		pin := str(item.Key)
		label, ok := labels[pin]
		if !ok {
			return nil, fmt.Errorf("reporter pin %s has a type but no label", pin)
		}
		if seen[label] {
			return nil, fmt.Errorf("reporter label %q used twice", label)
		}
		seen[label] = true
		r := Reporter{Pin: pin, Label: label, ValueType: str(item.Value)}
		c.Reporters = append(c.Reporters, r)
		c.reportersByPin[pin] = r
	}

	for _, item := range b.CommandPinMap {
		spec, err := parseCommandSpec(str(item.Key), str(item.Value))
		if err != nil {
			return nil, err
		}
		c.commands[spec.Name] = spec
	}
	for name, count := range reservedParamCounts {
		spec, ok := c.commands[name]
		if !ok {
			c.commands[name] = CommandSpec{Name: name, ParamCount: count}
			continue
		}
		if spec.ParamCount != count {
			return nil, fmt.Errorf("command %s takes %d parameters, configured %d", name, count, spec.ParamCount)
		}
	}
	return c, nil
}

// Command 按命令名查找
func (c *Catalog) Command(name string) (CommandSpec, bool) {
	spec, ok := c.commands[name]
	return spec, ok
}

// ReporterForPin 将设备回报的引脚映射到标签
func (c *Catalog) ReporterForPin(pin string) (Reporter, bool) {
	r, ok := c.reportersByPin[pin]
	return r, ok
}

// Labels 按轮询顺序返回全部标签
func (c *Catalog) Labels() []string {
	labels := make([]string, 0, len(c.Reporters))
	for _, r := range c.Reporters {
		labels = append(labels, r.Label)
	}
	return labels
}

// parseCommandSpec 解析 "<pin>,<paramCount>,<type>[,<fixedValue>]"
func parseCommandSpec(name, raw string) (CommandSpec, error) {
	fields := strings.Split(raw, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 2 || len(fields) > 4 {
		return CommandSpec{}, fmt.Errorf("command %s: expected \"<pin>,<paramCount>,<type>[,<value>]\", got %q", name, raw)
	}
	count, err := strconv.Atoi(fields[1])
	if err != nil || count < 0 {
		return CommandSpec{}, fmt.Errorf("command %s: invalid parameter count %q", name, fields[1])
	}
	spec := CommandSpec{Name: name, Pin: fields[0], ParamCount: count}
	if spec.Pin == "" {
		spec.Pin = ParamPin
	}
	if len(fields) > 2 {
		spec.ValueType = fields[2]
	}
	if len(fields) > 3 {
		spec.FixedValue = fields[3]
	}
	if _, reserved := reservedParamCounts[name]; reserved {
		return spec, nil
	}
	if spec.ValueType == "" {
		return CommandSpec{}, fmt.Errorf("command %s: missing value type", name)
	}
	switch {
	case spec.PinFromParams() && count < 2:
		return CommandSpec{}, fmt.Errorf("command %s: pin taken from parameters needs at least 2 parameters", name)
	case count == 0 && spec.FixedValue == "":
		return CommandSpec{}, fmt.Errorf("command %s: no parameters and no fixed value", name)
	}
	return spec, nil
}

// parsePolicy 非法取值按开启处理
func parsePolicy(v string) bool {
	switch strings.TrimSpace(v) {
	case "False", "false":
		return false
	default:
		return true
	}
}

func toMap(ms yaml.MapSlice) map[string]string {
	m := make(map[string]string, len(ms))
	for _, item := range ms {
		m[str(item.Key)] = str(item.Value)
	}
	return m
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
