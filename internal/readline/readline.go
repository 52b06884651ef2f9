// Package readline is the shell's line-input front end: a raw-mode
// terminal editor when stdin is a tty, a plain buffered reader otherwise.
package readline

import (
	"bufio"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Reader yields one command line per prompt cycle.
type Reader interface {
	// ReadLine shows prompt where supported and returns the next line
	// without its line ending. io.EOF ends the session.
	ReadLine(prompt string) (string, error)
	Close() error
}

// New selects the reader for in. out receives the editor's prompt and echo
// and is normally the same terminal.
func New(in *os.File, out *os.File) Reader {
	if in != nil && out != nil && term.IsTerminal(int(in.Fd())) {
		return newTerminalReader(in, out)
	}
	if in == nil {
		return FromReader(strings.NewReader(""))
	}
	return FromReader(in)
}

// FromReader returns a non-interactive reader over r, one line per call.
func FromReader(r io.Reader) Reader {
	return &scriptReader{br: bufio.NewReader(r)}
}

// FromString returns a reader that yields the given lines and then ends,
// which is how single-command invocation feeds the read loop.
func FromString(s string) Reader {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return FromReader(strings.NewReader(s))
}

type termIO struct {
	in  io.Reader
	out io.Writer
}

func (t termIO) Read(p []byte) (int, error)  { return t.in.Read(p) }
func (t termIO) Write(p []byte) (int, error) { return t.out.Write(p) }

type terminalReader struct {
	fd int
	t  *term.Terminal
}

func newTerminalReader(in, out *os.File) *terminalReader {
	return &terminalReader{
		fd: int(in.Fd()),
		t:  term.NewTerminal(termIO{in: in, out: out}, ""),
	}
}

// ReadLine edits one line in raw mode and restores the entry modes before
// returning, so spawned children see the terminal exactly as the shell
// found it. Raw mode also keeps interrupt keys at the prompt from
// signalling the shell; they arrive as bytes instead.
func (r *terminalReader) ReadLine(prompt string) (string, error) {
	old, err := term.MakeRaw(r.fd)
	if err != nil {
		return "", err
	}
	defer term.Restore(r.fd, old)

	r.t.SetPrompt(prompt)
	return r.t.ReadLine()
}

func (r *terminalReader) Close() error { return nil }

type scriptReader struct {
	br *bufio.Reader
}

func (r *scriptReader) ReadLine(string) (string, error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		// A final line without a newline still counts.
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *scriptReader) Close() error { return nil }
