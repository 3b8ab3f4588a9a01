package commands

import (
	"io"

	"github.com/livefir/livehydrate/cmd/lvh/internal/ui"
)

// Inspect opens the terminal debug window on a session.
func Inspect(args []string, stderr io.Writer) error {
	fs := newFlagSet("inspect", stderr)
	var sf sessionFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sf.load()
	if err != nil {
		return err
	}
	steps, err := loadSteps(fs)
	if err != nil {
		return err
	}
	return ui.Run(cfg, steps)
}
