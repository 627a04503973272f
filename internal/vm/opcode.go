package vm

import "fmt"

// Opcode is one operation of the strategy instruction set.
type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLoadK
	OpLoad
	OpStore
	OpDup
	OpDup2
	OpCmp
	OpBr
	OpCall
	OpRet
	OpMin
	OpMax
	OpMean
	OpMedian
	OpStd
	OpBuy
	OpSell
	OpRead
	OpExit
)

var opcodeNames = map[string]Opcode{
	"ADD":    OpAdd,
	"SUB":    OpSub,
	"MUL":    OpMul,
	"DIV":    OpDiv,
	"MOD":    OpMod,
	"LOADK":  OpLoadK,
	"LOAD":   OpLoad,
	"STORE":  OpStore,
	"DUP":    OpDup,
	"DUP2":   OpDup2,
	"CMP":    OpCmp,
	"BR":     OpBr,
	"CALL":   OpCall,
	"RET":    OpRet,
	"MIN":    OpMin,
	"MAX":    OpMax,
	"MEAN":   OpMean,
	"MEDIAN": OpMedian,
	"STD":    OpStd,
	"BUY":    OpBuy,
	"SELL":   OpSell,
	"READ":   OpRead,
	"EXIT":   OpExit,
}

func parseOpcode(name string) (Opcode, error) {
	op, ok := opcodeNames[name]
	if !ok {
		return OpExit, fmt.Errorf("vm: unknown opcode %q", name)
	}
	return op, nil
}

// Condition gates an instruction on the zero flag set by the latest CMP
// or stack push.
type Condition int

const (
	CondNone Condition = iota
	CondEQ
	CondNE
	CondLT
	CondGT
	CondLE
	CondGE
)

var conditionNames = map[string]Condition{
	"EQ": CondEQ,
	"NE": CondNE,
	"LT": CondLT,
	"GT": CondGT,
	"LE": CondLE,
	"GE": CondGE,
}

// met reports whether the condition holds for the given zero flag.
func (c Condition) met(zf int64) bool {
	switch c {
	case CondEQ:
		return zf == 0
	case CondNE:
		return zf != 0
	case CondLT:
		return zf < 0
	case CondGT:
		return zf > 0
	case CondLE:
		return zf <= 0
	case CondGE:
		return zf >= 0
	default:
		return true
	}
}
