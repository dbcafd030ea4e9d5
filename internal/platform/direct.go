package platform

import (
	"github.com/smazurov/camdisplay/internal/display"
	"github.com/smazurov/camdisplay/internal/logging"
	"github.com/smazurov/camdisplay/internal/srm"
)

// direct exposes frame memory and the SRM engine to the pipeline.
type direct struct {
	board  string
	alloc  display.Allocator
	engine *srm.Engine
}

func newDirect(board string, opts Options, logger logging.Logger) *direct {
	if logger != nil {
		logger.Info("Using direct platform", "board_model", board)
	}
	return &direct{
		board:  board,
		alloc:  newAllocator(opts.MemoryLimit),
		engine: srm.New(opts.MaxClients, nil),
	}
}

func (d *direct) Name() string                     { return "direct" }
func (d *direct) Check() error                     { return nil }
func (d *direct) Allocator() display.Allocator     { return d.alloc }
func (d *direct) Accelerator() display.Accelerator { return d.engine }

// Board returns the detected board model.
func (d *direct) Board() string { return d.board }
