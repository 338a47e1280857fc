package main

import (
	"strings"
	"testing"

	"bfkit/pkg/config"
)

func newTestGame(src string) *Game {
	cfg := config.Default()
	cfg.Interpreter.Cells = 64
	return NewGame([]byte(src), cfg)
}

func TestGameAdvanceRunsToCompletion(t *testing.T) {
	g := newTestGame("++++++[>++++++++<-]>+.")
	g.advance(10000)

	if !g.done {
		t.Fatalf("expected program to finish, status %q", g.status)
	}
	if got := g.out.String(); got != "1" {
		t.Errorf("output = %q; want %q", got, "1")
	}
}

func TestGameWaitsForInput(t *testing.T) {
	g := newTestGame(",.")

	if ran := g.advance(100); ran != 0 {
		t.Fatalf("advance ran %d instructions with no keys queued", ran)
	}
	if !g.waitingForInput() || g.done {
		t.Fatal("expected game to wait for input")
	}

	g.keys.Push('x')
	g.advance(100)
	if got := g.out.String(); got != "x" {
		t.Errorf("output = %q; want %q", got, "x")
	}
	if !g.done {
		t.Error("expected program to finish")
	}
}

func TestGameBreakpointEndsRun(t *testing.T) {
	g := newTestGame("+#+.")

	if ran := g.advance(100); ran != 2 {
		t.Errorf("advance ran %d instructions; want 2", ran)
	}
	if !g.done {
		t.Fatalf("done=%v; want the breakpoint to end the run", g.done)
	}
	if !strings.Contains(g.status, "breakpoint") {
		t.Errorf("status = %q; want a breakpoint message", g.status)
	}

	g.paused = false
	if ran := g.advance(100); ran != 0 {
		t.Errorf("advance ran %d instructions after the breakpoint", ran)
	}
	if g.it.Cell() != 1 || g.out.Len() != 0 {
		t.Errorf("cell = %d output = %q; want 1 and no output", g.it.Cell(), g.out.String())
	}
}

func TestGameFinishesOnTrailingComment(t *testing.T) {
	g := newTestGame("+. done")
	g.advance(100)
	if !g.done || !strings.Contains(g.status, "finished after 2 steps") {
		t.Errorf("done=%v status=%q; want finished after 2 steps", g.done, g.status)
	}
}

func TestGameStrictRejectsUnbalanced(t *testing.T) {
	cfg := config.Default()
	cfg.Interpreter.Strict = true
	g := NewGame([]byte("+]"), cfg)

	if !g.done || g.status == "" {
		t.Fatalf("done=%v status=%q; want stopped with an error", g.done, g.status)
	}
	if ran := g.advance(10); ran != 0 {
		t.Errorf("advance ran %d instructions", ran)
	}
}

func TestKeyQueue(t *testing.T) {
	q := &keyQueue{}
	buf := make([]byte, 1)
	if _, err := q.Read(buf); err == nil {
		t.Fatal("expected EOF from empty queue")
	}

	q.Push('a')
	q.Push('b')
	if n, err := q.Read(buf); n != 1 || err != nil || buf[0] != 'a' {
		t.Fatalf("Read = %d, %v, %q", n, err, buf[0])
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d; want 1", q.Len())
	}
}

func TestLayoutFitsColumns(t *testing.T) {
	g := newTestGame("")
	g.columns = 32
	w, _ := g.Layout(0, 0)
	if w < 2*margin+32*cellWidth {
		t.Errorf("width %d too small for 32 columns", w)
	}
}
