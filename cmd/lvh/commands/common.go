package commands

import (
	"flag"
	"fmt"
	"io"

	"github.com/livefir/livehydrate"
	"github.com/livefir/livehydrate/cmd/lvh/internal/session"
)

// sessionFlags are shared by the commands that replay a session file.
type sessionFlags struct {
	configPath string
	minify     bool
}

func (f *sessionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "livehydrate.yaml", "Engine config file (defaults apply when missing)")
	fs.BoolVar(&f.minify, "minify", false, "Minify rendered HTML")
}

func (f *sessionFlags) load() (*livehydrate.Config, error) {
	cfg, err := livehydrate.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.minify {
		cfg.Minify = true
	}
	return cfg, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// loadSteps reads the single session file argument.
func loadSteps(fs *flag.FlagSet) ([]session.Step, error) {
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("session file required: lvh %s [flags] <session.jsonl>", fs.Name())
	}
	records, err := session.Load(fs.Arg(0))
	if err != nil {
		return nil, err
	}
	return session.Replay(records), nil
}
