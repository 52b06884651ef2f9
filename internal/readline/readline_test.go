package readline

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

func TestScriptReaderLines(t *testing.T) {
	r := FromReader(strings.NewReader("echo one\r\necho two\nfinal"))

	for _, want := range []string{"echo one", "echo two", "final"} {
		got, err := r.ReadLine("ignored> ")
		if err != nil {
			t.Fatalf("read %q: %v", want, err)
		}
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
	if _, err := r.ReadLine(""); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestScriptReaderEmptyInput(t *testing.T) {
	r := FromReader(strings.NewReader(""))
	if _, err := r.ReadLine(""); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestFromStringYieldsOneLine(t *testing.T) {
	r := FromString("sleep 1 &")
	got, err := r.ReadLine("")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "sleep 1 &" {
		t.Fatalf("got %q", got)
	}
	if _, err := r.ReadLine(""); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestNewPicksScriptReaderForPipe(t *testing.T) {
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pr.Close()

	go func() {
		pw.WriteString("jobs\n")
		pw.Close()
	}()

	r := New(pr, os.Stdout)
	if _, ok := r.(*terminalReader); ok {
		t.Fatal("pipe input selected the terminal reader")
	}
	got, err := r.ReadLine("gosh> ")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "jobs" {
		t.Fatalf("got %q, want %q", got, "jobs")
	}
}

func TestTerminalReaderOnPty(t *testing.T) {
	ptm, pts, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	defer ptm.Close()
	defer pts.Close()

	r := New(pts, pts)
	if _, ok := r.(*terminalReader); !ok {
		t.Fatal("pty input did not select the terminal reader")
	}

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadLine("gosh> ")
		ch <- result{line, err}
	}()

	// Write the input only once ReadLine has put the slave into raw mode;
	// before that the canonical line discipline turns \r into \n, which the
	// editor does not treat as enter.
	rawDeadline := time.Now().Add(5 * time.Second)
	for {
		tio, err := unix.IoctlGetTermios(int(pts.Fd()), unix.TCGETS)
		if err != nil {
			t.Fatalf("read slave termios: %v", err)
		}
		if tio.Lflag&unix.ICANON == 0 {
			break
		}
		if time.Now().After(rawDeadline) {
			t.Fatal("slave never entered raw mode")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := ptm.WriteString("echo hi\r"); err != nil {
		t.Fatalf("write pty: %v", err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("read line: %v", res.err)
		}
		if res.line != "echo hi" {
			t.Fatalf("got %q, want %q", res.line, "echo hi")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReadLine did not return")
	}

	// The prompt and echo went to the terminal; drain enough to see the
	// prompt text.
	buf := make([]byte, 256)
	n, err := ptm.Read(buf)
	if err != nil {
		t.Fatalf("read pty output: %v", err)
	}
	if !strings.Contains(string(buf[:n]), "gosh> ") {
		t.Fatalf("prompt not echoed, got %q", string(buf[:n]))
	}
}
