package vm

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const machineSize = 256

// Host is the strategy's window into the venue. BUY and SELL place limit
// orders and return the assigned order id, or a negative value when the
// order was rejected. READ returns one market statistic by selector.
type Host interface {
	Buy(price, volume int64) int64
	Sell(price, volume int64) int64
	Read(selector int64) int64
}

// Selectors understood by the engine's Host implementation.
const (
	ReadLastPrice int64 = iota
	ReadTopBidPrice
	ReadTopBidVolume
	ReadTopAskPrice
	ReadTopAskVolume
	ReadTick
)

// Machine executes a compiled Script. A zero Machine is ready to run;
// memory, stack and call stack survive across runs so a strategy can keep
// state between ticks.
type Machine struct {
	zf        int64
	sp        int
	csp       int
	ip        int
	memory    [machineSize]int64
	stack     [machineSize]int64
	callStack [machineSize]int
	executed  int
	elapsed   time.Duration
	halted    bool

	host Host
}

// NewMachine creates a machine. Host may be nil for pure computation;
// running BUY, SELL or READ without one fails.
func NewMachine(host Host) *Machine {
	return &Machine{host: host}
}

// Exec compiles and runs source on a fresh machine.
func Exec(source string, host Host) (Result, error) {
	script, err := Compile(source)
	if err != nil {
		return Result{}, err
	}
	machine := NewMachine(host)
	if err := machine.Run(script); err != nil {
		return Result{}, err
	}
	return machine.Result(), nil
}

// Run executes the script from its first instruction until EXIT, the end
// of the program or the instruction budget. Runtime faults (stack
// exhaustion, division by zero, bad memory slot) abort with an error.
func (m *Machine) Run(script Script) error {
	start := time.Now()
	defer func() { m.elapsed = time.Since(start) }()

	m.ip = 0
	m.halted = false
	m.executed = 0

	budget := script.MaxInstructions
	for !m.halted && m.ip < len(script.Instructions) && (budget == 0 || m.executed < budget) {
		if err := m.exec(script.Instructions[m.ip]); err != nil {
			return err
		}
		m.ip++
		m.executed++
	}
	return nil
}

// Result reports the outcome of the latest run.
func (m *Machine) Result() Result {
	res := Result{Instructions: m.executed, Time: m.elapsed}
	if m.sp > 0 {
		top := m.stack[m.sp-1]
		res.Value = &top
	}
	return res
}

// Halted reports whether the latest run ended on EXIT.
func (m *Machine) Halted() bool {
	return m.halted
}

func (m *Machine) exec(inst Instruction) error {
	if !inst.Condition.met(m.zf) {
		return nil
	}

	switch inst.Opcode {
	case OpAdd:
		b, a, err := m.pop2()
		if err != nil {
			return err
		}
		return m.push(a + b)
	case OpSub:
		b, a, err := m.pop2()
		if err != nil {
			return err
		}
		return m.push(a - b)
	case OpMul:
		b, a, err := m.pop2()
		if err != nil {
			return err
		}
		return m.push(a * b)
	case OpDiv:
		b, a, err := m.pop2()
		if err != nil {
			return err
		}
		if b == 0 {
			return fmt.Errorf("vm: division by zero at instruction %d", m.ip)
		}
		return m.push(a / b)
	case OpMod:
		b, a, err := m.pop2()
		if err != nil {
			return err
		}
		if b == 0 {
			return fmt.Errorf("vm: division by zero at instruction %d", m.ip)
		}
		return m.push(a % b)
	case OpLoadK:
		return m.push(inst.Value)
	case OpLoad:
		if inst.Value < 0 || inst.Value >= machineSize {
			return fmt.Errorf("vm: memory slot %d out of range", inst.Value)
		}
		return m.push(m.memory[inst.Value])
	case OpStore:
		if inst.Value < 0 || inst.Value >= machineSize {
			return fmt.Errorf("vm: memory slot %d out of range", inst.Value)
		}
		value, err := m.pop()
		if err != nil {
			return err
		}
		m.memory[inst.Value] = value
		return nil
	case OpDup:
		a, err := m.pop()
		if err != nil {
			return err
		}
		if err := m.push(a); err != nil {
			return err
		}
		return m.push(a)
	case OpDup2:
		b, a, err := m.pop2()
		if err != nil {
			return err
		}
		for _, v := range []int64{a, b, a, b} {
			if err := m.push(v); err != nil {
				return err
			}
		}
		return nil
	case OpCmp:
		b, a, err := m.pop2()
		if err != nil {
			return err
		}
		m.zf = compare(a, b)
		return nil
	case OpBr:
		m.ip = int(inst.Value) - 1
		return nil
	case OpCall:
		if m.csp >= machineSize {
			return fmt.Errorf("vm: call stack overflow at instruction %d", m.ip)
		}
		m.callStack[m.csp] = m.ip
		m.csp++
		m.ip = int(inst.Value) - 1
		return nil
	case OpRet:
		if m.csp == 0 {
			return fmt.Errorf("vm: return with empty call stack at instruction %d", m.ip)
		}
		m.csp--
		m.ip = m.callStack[m.csp]
		return nil
	case OpMin, OpMax, OpMean, OpMedian, OpStd:
		return m.aggregate(inst.Opcode)
	case OpBuy:
		volume, price, err := m.pop2()
		if err != nil {
			return err
		}
		if m.host == nil {
			return fmt.Errorf("vm: BUY without a host")
		}
		return m.push(m.host.Buy(price, volume))
	case OpSell:
		volume, price, err := m.pop2()
		if err != nil {
			return err
		}
		if m.host == nil {
			return fmt.Errorf("vm: SELL without a host")
		}
		return m.push(m.host.Sell(price, volume))
	case OpRead:
		if m.host == nil {
			return fmt.Errorf("vm: READ without a host")
		}
		return m.push(m.host.Read(inst.Value))
	case OpExit:
		m.halted = true
		return nil
	default:
		return fmt.Errorf("vm: unknown opcode %d", inst.Opcode)
	}
}

// aggregate pops an operand count, then that many operands, and pushes
// the aggregate of them.
func (m *Machine) aggregate(op Opcode) error {
	count, err := m.pop()
	if err != nil {
		return err
	}
	if count <= 0 || count > int64(m.sp) {
		return fmt.Errorf("vm: aggregate over %d operands with stack depth %d", count, m.sp)
	}
	values := make([]int64, count)
	for i := range values {
		values[i], _ = m.pop()
	}

	switch op {
	case OpMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return m.push(min)
	case OpMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return m.push(max)
	case OpMean:
		var sum int64
		for _, v := range values {
			sum += v
		}
		return m.push(sum / count)
	case OpMedian:
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		mid := len(values) / 2
		if len(values)%2 == 1 {
			return m.push(values[mid])
		}
		return m.push((values[mid-1] + values[mid]) / 2)
	default: // OpStd
		var sum int64
		for _, v := range values {
			sum += v
		}
		mean := float64(sum) / float64(count)
		var variance float64
		for _, v := range values {
			d := float64(v) - mean
			variance += d * d
		}
		return m.push(int64(math.Sqrt(variance / float64(count))))
	}
}

func (m *Machine) push(value int64) error {
	if m.sp >= machineSize {
		return fmt.Errorf("vm: stack overflow at instruction %d", m.ip)
	}
	m.stack[m.sp] = value
	m.sp++
	m.zf = compare(value, 0)
	return nil
}

func (m *Machine) pop() (int64, error) {
	if m.sp == 0 {
		return 0, fmt.Errorf("vm: stack underflow at instruction %d", m.ip)
	}
	m.sp--
	value := m.stack[m.sp]
	if m.sp > 0 {
		m.zf = compare(m.stack[m.sp-1], 0)
	}
	return value, nil
}

// pop2 pops two operands, returning them newest first.
func (m *Machine) pop2() (b, a int64, err error) {
	if b, err = m.pop(); err != nil {
		return 0, 0, err
	}
	if a, err = m.pop(); err != nil {
		return 0, 0, err
	}
	return b, a, nil
}

func compare(a, b int64) int64 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
