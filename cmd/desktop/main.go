// Command desktop steps the tape interpreter in a window, showing the cells
// around the pointer and the program output as it runs.
package main

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/tliron/commonlog"
	"golang.org/x/image/font/basicfont"
	"gopkg.in/alecthomas/kingpin.v2"

	"bfkit/pkg/bf"
	"bfkit/pkg/config"
	"bfkit/pkg/grid"
	"bfkit/pkg/interp"
	"bfkit/pkg/utils"
)

var (
	app = kingpin.New("desktop", "Watch a program run on the tape interpreter.")

	argSource = app.Arg("source", "The source file of the program to run.").Required().ExistingFile()

	flagConfig  = app.Flag("config", "Path to a bfkit.toml file.").ExistingFile()
	flagVerbose = app.Flag("verbose", "Increase log verbosity (repeatable).").Short('v').Counter()
)

var log = commonlog.GetLogger("bfkit.cli")

const (
	tapeRows   = 8
	cellWidth  = 24
	lineHeight = 16
	margin     = 8
	outputRows = 10
)

var (
	face         = text.NewGoXFace(basicfont.Face7x13)
	cellColor    = color.RGBA{0xa0, 0xa0, 0xa0, 0xff}
	pointerColor = color.RGBA{0xff, 0xd0, 0x40, 0xff}
)

// keyQueue feeds typed characters to the interpreter. It never blocks; the
// game pauses before an Input instruction while the queue is empty.
type keyQueue struct {
	buf []byte
}

func (q *keyQueue) Push(b byte) { q.buf = append(q.buf, b) }

func (q *keyQueue) Len() int { return len(q.buf) }

func (q *keyQueue) Read(p []byte) (int, error) {
	if len(q.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	return n, nil
}

type Game struct {
	it            *interp.Interpreter
	keys          *keyQueue
	out           strings.Builder
	stepsPerFrame int
	columns       int

	paused bool
	done   bool
	status string
}

func NewGame(src []byte, cfg *config.Config) *Game {
	g := &Game{
		it:            interp.New(src, cfg.Interpreter.Cells),
		keys:          &keyQueue{},
		stepsPerFrame: cfg.Desktop.StepsPerFrame,
		columns:       cfg.Desktop.Columns,
	}
	g.it.Input = g.keys
	g.it.Output = &g.out
	g.it.Strict = cfg.Interpreter.Strict
	if g.it.Strict {
		if err := bf.Validate(src); err != nil {
			g.done = true
			g.status = err.Error()
		}
	}
	return g
}

func (g *Game) waitingForInput() bool {
	ins, ok := g.it.Peek()
	return ok && ins == bf.Input && g.keys.Len() == 0
}

// advance runs up to n instructions and reports how many ran. A breakpoint
// ends the run like any other error.
func (g *Game) advance(n int) int {
	ran := 0
	for ; ran < n; ran++ {
		if g.done || g.waitingForInput() {
			break
		}
		if g.it.Done() {
			g.done = true
			g.status = fmt.Sprintf("finished after %d steps", g.it.Steps())
			break
		}
		if _, err := g.it.Step(); err != nil {
			g.done = true
			var bp *interp.BreakpointError
			if errors.As(err, &bp) {
				g.status = fmt.Sprintf("stopped at breakpoint, offset %d (pointer=%d cell=%d)", bp.Pos, bp.Pointer, bp.Cell)
				return ran + 1
			}
			g.status = err.Error()
			log.Errorf("%s", err)
			return ran
		}
	}
	return ran
}

func (g *Game) Update() error {
	for _, r := range ebiten.AppendInputChars(nil) {
		if r < 0x80 {
			g.keys.Push(byte(r))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		g.keys.Push('\n')
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.paused = !g.paused
		g.status = ""
	}

	switch {
	case g.done:
	case g.paused:
		if inpututil.IsKeyJustPressed(ebiten.KeyF8) {
			g.advance(1)
		}
	default:
		g.advance(g.stepsPerFrame)
	}
	return nil
}

func (g *Game) drawText(screen *ebiten.Image, s string, x, y int, c color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(c)
	text.Draw(screen, s, face, op)
}

func (g *Game) Draw(screen *ebiten.Image) {
	state := "running"
	switch {
	case g.done:
		state = "stopped"
	case g.paused:
		state = "paused (Tab resumes, F8 steps)"
	case g.waitingForInput():
		state = "waiting for input"
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s  offset=%d steps=%d depth=%d", state, g.it.PC(), g.it.Steps(), g.it.Depth()), margin, 0)
	if g.status != "" {
		ebitenutil.DebugPrintAt(screen, g.status, margin, lineHeight)
	}

	cells := g.it.Cells()
	ptr := g.it.Pointer()
	start, end := grid.Window(ptr, g.columns*tapeRows, len(cells))
	top := 3 * lineHeight
	for i := start; i < end; i++ {
		x, y := grid.GetGridCoords(i-start, g.columns)
		c := cellColor
		if i == ptr {
			c = pointerColor
		}
		g.drawText(screen, fmt.Sprintf("%02X", cells[i]), margin+x*cellWidth, top+y*lineHeight, c)
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("cells %d-%d, pointer %d", start, end-1, ptr), margin, top+tapeRows*lineHeight)

	lines := strings.Split(g.out.String(), "\n")
	if len(lines) > outputRows {
		lines = lines[len(lines)-outputRows:]
	}
	outTop := top + (tapeRows+2)*lineHeight
	for i, line := range lines {
		g.drawText(screen, line, margin, outTop+i*lineHeight, color.White)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	width := 2*margin + g.columns*cellWidth
	if width < 480 {
		width = 480
	}
	return width, (tapeRows + outputRows + 5) * lineHeight
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	var cfg *config.Config
	var err error
	if *flagConfig != "" {
		cfg, err = config.Load(*flagConfig)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "desktop: %v\n", err)
		os.Exit(1)
	}
	utils.ConfigureLogging(cfg.Log.Verbosity+*flagVerbose, cfg.Log.File)

	fullPath, _, err := utils.GetPathInfo(*argSource)
	if err != nil {
		fmt.Fprintf(os.Stderr, "desktop: %v\n", err)
		os.Exit(1)
	}
	src, err := os.ReadFile(fullPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "desktop: %v\n", err)
		os.Exit(1)
	}

	game := NewGame(src, cfg)
	w, h := game.Layout(0, 0)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("bfkit: " + fullPath)

	if err := ebiten.RunGame(game); err != nil {
		fmt.Fprintf(os.Stderr, "desktop: %v\n", err)
		os.Exit(1)
	}
}
