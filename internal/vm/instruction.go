package vm

import "time"

// Instruction is one compiled operation: an opcode, an optional condition
// gating its execution and an immediate operand (constant, memory slot or
// jump target depending on the opcode).
type Instruction struct {
	Opcode    Opcode
	Condition Condition
	Value     int64
}

// Script is a compiled program. MaxInstructions of zero means no budget.
type Script struct {
	Instructions    []Instruction
	MaxInstructions int
}

// Result summarizes one execution: the value left on top of the stack
// (nil when the stack ended empty), the number of instructions executed
// and the wall time spent.
type Result struct {
	Value        *int64        `json:"result"`
	Instructions int           `json:"instructions"`
	Time         time.Duration `json:"time"`
}
