package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Compile turns assembler-style source into a Script.
//
// Source is line oriented. `#` starts a comment. Each line holds at most
// one instruction: an opcode mnemonic, optionally suffixed with a two
// letter condition (ADDEQ, BRNE), followed by an immediate operand. A
// leading `:name` token defines a label at the next instruction; `:name`
// as operand is a jump target. `$name` operands are scoped variables
// allocated to memory slots on first use; `{` and `}` open and close a
// lexical scope. Label targets resolve against the enclosing scope so a
// loop can jump to labels defined before its own scope opened.
func Compile(source string) (Script, error) {
	root := newScope(nil)
	active := root

	type semi struct {
		opcode    Opcode
		condition Condition
		imm       string
		scope     *scope
		line      int
	}
	var semis []semi

	for lineNo, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(strings.SplitN(line, "#", 2)[0])
		if line == "" {
			continue
		}

		var (
			haveOpcode bool
			opcode     Opcode
			condition  = CondNone
			imm        = "0"
		)
		for i, token := range strings.Fields(line) {
			switch {
			case token == "{":
				active = newScope(active)
			case token == "}":
				if active.parent == nil {
					return Script{}, fmt.Errorf("vm: line %d: unbalanced scope close", lineNo+1)
				}
				active = active.parent
			case strings.HasPrefix(token, ":"):
				if i == 0 {
					active.put(token, int64(len(semis)))
				} else {
					imm = token
				}
			case strings.HasPrefix(token, "$"):
				imm = token
			case !haveOpcode:
				name := strings.ToUpper(token)
				if len(name) > 2 {
					if cond, ok := conditionNames[name[len(name)-2:]]; ok {
						if _, err := parseOpcode(name[:len(name)-2]); err == nil {
							condition = cond
							name = name[:len(name)-2]
						}
					}
				}
				op, err := parseOpcode(name)
				if err != nil {
					return Script{}, fmt.Errorf("vm: line %d: %w", lineNo+1, err)
				}
				opcode = op
				haveOpcode = true
			default:
				imm = token
			}
		}
		if haveOpcode {
			semis = append(semis, semi{opcode: opcode, condition: condition, imm: imm, scope: active, line: lineNo + 1})
		}
	}

	instructions := make([]Instruction, 0, len(semis))
	for _, s := range semis {
		inst := Instruction{Opcode: s.opcode, Condition: s.condition}
		switch {
		case strings.HasPrefix(s.imm, ":"):
			// Labels live in the scope enclosing the referencing one, so a
			// branch inside `{ }` can target a label defined outside it.
			scope := s.scope
			if scope.parent != nil {
				scope = scope.parent
			}
			target, ok := scope.resolve(s.imm, false)
			if !ok {
				return Script{}, fmt.Errorf("vm: line %d: undefined label %s", s.line, s.imm)
			}
			inst.Value = target
		case strings.HasPrefix(s.imm, "$"):
			slot, _ := s.scope.resolve(s.imm, true)
			inst.Value = slot
		default:
			value, err := strconv.ParseInt(s.imm, 10, 64)
			if err != nil {
				return Script{}, fmt.Errorf("vm: line %d: bad operand %q", s.line, s.imm)
			}
			inst.Value = value
		}
		instructions = append(instructions, inst)
	}

	return Script{Instructions: instructions}, nil
}

// scope maps labels and variables to indices. Variable slots nest: a
// child scope's first variable lands just past every slot its ancestors
// allocated, so sibling scopes reuse the same memory.
type scope struct {
	parent     *scope
	names      map[string]int64
	varCounter int64
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]int64)}
}

func (s *scope) put(name string, value int64) {
	s.names[name] = value
}

func (s *scope) resolve(name string, create bool) (int64, bool) {
	if value, ok := s.names[name]; ok {
		return value, true
	}
	if s.parent != nil {
		if value, ok := s.parent.resolve(name, false); ok {
			return value, true
		}
	}
	if !create {
		return 0, false
	}
	slot := s.offset()
	s.names[name] = slot
	s.varCounter++
	return slot, true
}

func (s *scope) offset() int64 {
	if s.parent == nil {
		return s.varCounter
	}
	return s.varCounter + s.parent.offset()
}
