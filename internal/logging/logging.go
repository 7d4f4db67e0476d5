package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// New returns the root logger. level is one of trace, debug, info, warn or
// error; anything else is rejected.
func New(level string) (hclog.Logger, error) {
	return NewWithOutput(level, os.Stderr)
}

func NewWithOutput(level string, w io.Writer) (hclog.Logger, error) {
	lvl := hclog.LevelFromString(strings.TrimSpace(level))
	if lvl == hclog.NoLevel {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q", level)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "restrobook",
		Level:  lvl,
		Output: w,
	}), nil
}
