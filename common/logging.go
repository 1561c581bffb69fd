// Package common holds small cross-cutting pieces shared by the server,
// its CLI entrypoint, and the HTTP layer: logging output routing today.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus output by level: error-level lines go to
// stderr, everything else to stdout, so container log collectors can treat
// the two streams differently without parsing structured fields.
type OutputSplitter struct{}

func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logger. Every package logs through it rather
// than constructing its own, so format and output routing stay uniform.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
	Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
