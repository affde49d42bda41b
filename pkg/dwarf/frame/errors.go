package frame

import "fmt"

// NoFDEError reports that no FDE covers a pc. Lo/Hi carry the span of
// the whole index so a caller can tell a pc outside the text segment
// from one falling in a gap between functions.
type NoFDEError struct {
	PC     uint64
	Lo, Hi uint64
}

func (err *NoFDEError) Error() string {
	if err.Lo == err.Hi {
		return fmt.Sprintf("no FDE covers pc %#x: frame index is empty", err.PC)
	}
	return fmt.Sprintf("no FDE covers pc %#x: frame index spans [%#x, %#x)", err.PC, err.Lo, err.Hi)
}
