package bus

import (
	"fmt"
	"strconv"
	"strings"
)

// Request is one bridge request line.
type Request struct {
	Write bool
	Reg   byte
	Value uint32 // written value, writes only
	N     int    // register width in bytes
}

func formatWrite(reg byte, value uint32, n int) string {
	return fmt.Sprintf("W %02X %X %d\n", reg, value, n)
}

func formatRead(reg byte, n int) string {
	return fmt.Sprintf("R %02X %d\n", reg, n)
}

// ParseRequest parses a request line.
// Format: "W <reg> <value> <n>" | "R <reg> <n>", register and value in hex.
func ParseRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, fmt.Errorf("empty request")
	}

	var req Request
	switch {
	case fields[0] == "W" && len(fields) == 4:
		req.Write = true
		v, err := strconv.ParseUint(fields[2], 16, 32)
		if err != nil {
			return Request{}, fmt.Errorf("invalid value %q", fields[2])
		}
		req.Value = uint32(v)
	case fields[0] == "R" && len(fields) == 3:
	default:
		return Request{}, fmt.Errorf("malformed request %q", line)
	}

	reg, err := strconv.ParseUint(fields[1], 16, 8)
	if err != nil {
		return Request{}, fmt.Errorf("invalid register %q", fields[1])
	}
	req.Reg = byte(reg)

	req.N, err = strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return Request{}, fmt.Errorf("invalid width %q", fields[len(fields)-1])
	}
	if err := checkWidth(req.N); err != nil {
		return Request{}, err
	}
	if req.Write && req.N < MaxWidth && req.Value>>(8*uint(req.N)) != 0 {
		return Request{}, fmt.Errorf("value 0x%X wider than %d bytes", req.Value, req.N)
	}
	return req, nil
}

// Handle executes a request line against b and returns the reply line,
// including the trailing newline. It is the bridge side of Serial.
func Handle(b Bus, line string) string {
	req, err := ParseRequest(line)
	if err != nil {
		return "ERR " + err.Error() + "\n"
	}
	if req.Write {
		if err := b.WriteRegister(req.Reg, req.Value, req.N); err != nil {
			return "ERR " + err.Error() + "\n"
		}
		return "OK\n"
	}
	v, err := b.ReadRegister(req.Reg, req.N)
	if err != nil {
		return "ERR " + err.Error() + "\n"
	}
	return fmt.Sprintf("%X\n", v)
}

// parseReply parses one bridge reply line.
// Format: "OK" | "ERR <message>" | "<hex value>"
func parseReply(line string, wantValue bool) (uint32, error) {
	if line == "" {
		return 0, fmt.Errorf("empty reply")
	}
	if msg, ok := strings.CutPrefix(line, "ERR"); ok {
		return 0, fmt.Errorf("bridge error: %s", strings.TrimSpace(msg))
	}
	if !wantValue {
		if line != "OK" {
			return 0, fmt.Errorf("unexpected reply %q", line)
		}
		return 0, nil
	}
	v, err := strconv.ParseUint(line, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", line, err)
	}
	return uint32(v), nil
}
