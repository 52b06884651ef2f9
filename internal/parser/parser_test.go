package parser

import (
	"reflect"
	"testing"
)

func TestParseSimpleCommand(t *testing.T) {
	pipelines, err := Parse("ls -l /tmp")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pipelines) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(pipelines))
	}
	p := pipelines[0]
	if len(p.Stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(p.Stages))
	}
	if got, want := p.Stages[0].Argv, []string{"ls", "-l", "/tmp"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
	if p.Background || p.Input != "" || p.Output != "" {
		t.Fatalf("unexpected pipeline attributes: %+v", p)
	}
}

func TestParsePipelineWithRedirections(t *testing.T) {
	pipelines, err := Parse("cat < in.txt | sort | wc -l >> out.txt")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := pipelines[0]
	if len(p.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(p.Stages))
	}
	if p.Input != "in.txt" {
		t.Fatalf("input = %q, want in.txt", p.Input)
	}
	if p.Output != "out.txt" || !p.Append {
		t.Fatalf("output = %q append=%v, want out.txt append", p.Output, p.Append)
	}
}

func TestParseTruncateOutput(t *testing.T) {
	pipelines, err := Parse("echo hi > out.txt")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := pipelines[0]
	if p.Output != "out.txt" || p.Append {
		t.Fatalf("output = %q append=%v, want out.txt truncate", p.Output, p.Append)
	}
}

func TestParseBackgroundSeparatesPipelines(t *testing.T) {
	pipelines, err := Parse("sleep 5 & echo done")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pipelines) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(pipelines))
	}
	if !pipelines[0].Background {
		t.Fatalf("first pipeline should be background")
	}
	if pipelines[1].Background {
		t.Fatalf("second pipeline should be foreground")
	}
}

func TestParseSemicolonList(t *testing.T) {
	pipelines, err := Parse("cd /tmp; ls; ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pipelines) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(pipelines))
	}
}

func TestParseStderrMerge(t *testing.T) {
	pipelines, err := Parse("make 2>&1 | tee log")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := pipelines[0]
	if len(p.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(p.Stages))
	}
	if !p.Stages[0].MergeStderr {
		t.Fatalf("first stage should merge stderr")
	}
	if p.Stages[1].MergeStderr {
		t.Fatalf("second stage should not merge stderr")
	}
	if got, want := p.Stages[0].Argv, []string{"make"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
}

func TestParseQuoting(t *testing.T) {
	pipelines, err := Parse(`echo "hello world" 'a b' esc\ aped`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"echo", "hello world", "a b", "esc aped"}
	if got := pipelines[0].Stages[0].Argv; !reflect.DeepEqual(got, want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
}

func TestParseEmptyLine(t *testing.T) {
	pipelines, err := Parse("   ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pipelines != nil {
		t.Fatalf("expected no pipelines, got %v", pipelines)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"ls |",
		"| ls",
		"ls > ",
		"cat <",
		"echo 'unterminated",
		"&",
		"a | | b",
	}
	for _, line := range cases {
		if _, err := Parse(line); err == nil {
			t.Fatalf("expected parse error for %q", line)
		}
	}
}

func TestCommandLineReconstruction(t *testing.T) {
	pipelines, err := Parse("cat < in | wc -l > out")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := pipelines[0].CommandLine(), "cat| wc -l"; got != want {
		t.Fatalf("command line = %q, want %q", got, want)
	}
}

func TestParseMergeOperandBoundary(t *testing.T) {
	// "2" only becomes the merge operator when followed by exactly ">&1".
	pipelines, err := Parse("cat 2>out")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := pipelines[0]
	if got, want := p.Stages[0].Argv, []string{"cat", "2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
	if p.Output != "out" {
		t.Fatalf("output = %q, want out", p.Output)
	}
}
