package notify

import (
	"fmt"
	"io"
	"os"
)

// Stdio пишет уведомления в стандартные потоки: успех и информация в
// stdout, ошибки в stderr
type Stdio struct {
	out io.Writer
	err io.Writer
}

func NewStdio() *Stdio {
	return &Stdio{out: os.Stdout, err: os.Stderr}
}

// NewWriter направляет уведомления в заданные writers
func NewWriter(out, errOut io.Writer) *Stdio {
	return &Stdio{out: out, err: errOut}
}

func (s *Stdio) Success(format string, a ...any) {
	fmt.Fprintf(s.out, "✓ "+format+"\n", a...)
}

func (s *Stdio) Error(format string, a ...any) {
	fmt.Fprintf(s.err, "✗ "+format+"\n", a...)
}

func (s *Stdio) Info(format string, a ...any) {
	fmt.Fprintf(s.out, format+"\n", a...)
}
