// Package parser turns a raw command line into the pipeline list the shell
// executes. It understands pipes, input/output redirection, stderr merging,
// background markers and quoting; argument vectors are literal (no expansion).
package parser

import (
	"fmt"
	"strings"
)

// Stage is one command of a pipeline.
type Stage struct {
	Argv        []string
	MergeStderr bool // 2>&1: stderr follows stdout
}

// Pipeline is an ordered list of stages connected by pipes, with redirection
// applying to the pipeline as a whole.
type Pipeline struct {
	Stages     []*Stage
	Input      string // "< path", consumed by the first stage
	Output     string // "> path" or ">> path", produced by the last stage
	Append     bool   // ">>" selected
	Background bool   // trailing "&"
}

// CommandLine reconstructs the printable command line for job listings. The
// format matches the shell's announcements: stages joined by "| ", arguments
// by single spaces, redirections omitted.
func (p *Pipeline) CommandLine() string {
	parts := make([]string, 0, len(p.Stages))
	for _, st := range p.Stages {
		parts = append(parts, strings.Join(st.Argv, " "))
	}
	return strings.Join(parts, "| ")
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenPipe
	tokenSemi
	tokenAmp
	tokenIn
	tokenOut
	tokenOutAppend
	tokenMergeErr
)

type token struct {
	kind tokenKind
	text string
}

// Parse splits a command line into pipelines. A nil slice with a nil error
// means the line held nothing to run.
func Parse(line string) ([]*Pipeline, error) {
	tokens, err := lex(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	var pipelines []*Pipeline
	current := &Pipeline{}
	stage := &Stage{}

	flushStage := func() error {
		if len(stage.Argv) == 0 {
			if stage.MergeStderr || len(current.Stages) > 0 {
				return fmt.Errorf("parse error: missing command")
			}
			return nil
		}
		current.Stages = append(current.Stages, stage)
		stage = &Stage{}
		return nil
	}
	flushPipeline := func(bg bool) error {
		if err := flushStage(); err != nil {
			return err
		}
		if len(current.Stages) == 0 {
			if current.Input != "" || current.Output != "" || bg {
				return fmt.Errorf("parse error: missing command")
			}
			return nil
		}
		current.Background = bg
		pipelines = append(pipelines, current)
		current = &Pipeline{}
		return nil
	}
	redirectTarget := func(i int, what string) (string, error) {
		if i+1 >= len(tokens) || tokens[i+1].kind != tokenWord {
			return "", fmt.Errorf("parse error: %s redirection needs a path", what)
		}
		return tokens[i+1].text, nil
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.kind {
		case tokenWord:
			stage.Argv = append(stage.Argv, tok.text)
		case tokenMergeErr:
			if len(stage.Argv) == 0 {
				return nil, fmt.Errorf("parse error: 2>&1 needs a command")
			}
			stage.MergeStderr = true
		case tokenPipe:
			if err := flushStage(); err != nil {
				return nil, err
			}
			if len(current.Stages) == 0 {
				return nil, fmt.Errorf("parse error: missing command before |")
			}
			// Force the next stage to exist.
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("parse error: missing command after |")
			}
		case tokenIn:
			target, err := redirectTarget(i, "input")
			if err != nil {
				return nil, err
			}
			if current.Input != "" {
				return nil, fmt.Errorf("parse error: duplicate input redirection")
			}
			current.Input = target
			i++
		case tokenOut, tokenOutAppend:
			target, err := redirectTarget(i, "output")
			if err != nil {
				return nil, err
			}
			if current.Output != "" {
				return nil, fmt.Errorf("parse error: duplicate output redirection")
			}
			current.Output = target
			current.Append = tok.kind == tokenOutAppend
			i++
		case tokenSemi:
			if err := flushPipeline(false); err != nil {
				return nil, err
			}
		case tokenAmp:
			if err := flushPipeline(true); err != nil {
				return nil, err
			}
		}
	}
	if err := flushPipeline(false); err != nil {
		return nil, err
	}
	return pipelines, nil
}

// lex splits the line into words and operators. Single quotes are literal,
// double quotes honor backslash escapes, and an unquoted backslash escapes
// the next rune.
func lex(line string) ([]token, error) {
	var tokens []token
	var word strings.Builder
	haveWord := false

	emitWord := func() {
		if !haveWord {
			return
		}
		tokens = append(tokens, token{kind: tokenWord, text: word.String()})
		word.Reset()
		haveWord = false
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case ' ', '\t':
			emitWord()
		case '\'':
			haveWord = true
			closed := false
			for i++; i < len(runes); i++ {
				if runes[i] == '\'' {
					closed = true
					break
				}
				word.WriteRune(runes[i])
			}
			if !closed {
				return nil, fmt.Errorf("parse error: unterminated quote")
			}
		case '"':
			haveWord = true
			closed := false
			for i++; i < len(runes); i++ {
				if runes[i] == '"' {
					closed = true
					break
				}
				if runes[i] == '\\' && i+1 < len(runes) {
					i++
				}
				word.WriteRune(runes[i])
			}
			if !closed {
				return nil, fmt.Errorf("parse error: unterminated quote")
			}
		case '\\':
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("parse error: trailing backslash")
			}
			haveWord = true
			i++
			word.WriteRune(runes[i])
		case '|':
			emitWord()
			tokens = append(tokens, token{kind: tokenPipe})
		case ';':
			emitWord()
			tokens = append(tokens, token{kind: tokenSemi})
		case '&':
			emitWord()
			tokens = append(tokens, token{kind: tokenAmp})
		case '<':
			emitWord()
			tokens = append(tokens, token{kind: tokenIn})
		case '>':
			// A standalone "2>&1" word is the stderr-merge operator, not an
			// output redirection of a command named "2".
			if haveWord && word.String() == "2" && hasMergeSuffix(runes, i) {
				word.Reset()
				haveWord = false
				tokens = append(tokens, token{kind: tokenMergeErr})
				i += 2
				continue
			}
			emitWord()
			if i+1 < len(runes) && runes[i+1] == '>' {
				tokens = append(tokens, token{kind: tokenOutAppend})
				i++
			} else {
				tokens = append(tokens, token{kind: tokenOut})
			}
		default:
			haveWord = true
			word.WriteRune(r)
		}
	}
	emitWord()
	return tokens, nil
}

func hasMergeSuffix(runes []rune, i int) bool {
	if i+2 >= len(runes) || runes[i+1] != '&' || runes[i+2] != '1' {
		return false
	}
	if i+3 == len(runes) {
		return true
	}
	switch runes[i+3] {
	case ' ', '\t', '|', ';', '&', '<', '>':
		return true
	}
	return false
}
