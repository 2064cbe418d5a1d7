package log

import (
	"bytes"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestInit(t *testing.T) {
	c := qt.New(t)
	previous := Level()
	defer Init(previous, "stderr", nil)

	var out, errOut bytes.Buffer
	logTestWriter = &out
	Init(LogLevelInfo, logTestWriterName, &errOut)
	c.Assert(Level(), qt.Equals, LogLevelInfo)

	Debugw("hidden")
	Infow("election created", "electionId", 3)
	Errorw(errors.New("boom"), "tally failed")

	c.Assert(out.String(), qt.Not(qt.Contains), "hidden")
	c.Assert(out.String(), qt.Matches, `(?s).*2006-01-02T15:04:05\.000Z INF log/log_test\.go:\d+ > election created electionId=3\n.*`)
	c.Assert(out.String(), qt.Matches, `(?s).*ERR log/log_test\.go:\d+ > tally failed error=boom\n.*`)
	c.Assert(errOut.String(), qt.Not(qt.Contains), "election created")
	c.Assert(errOut.String(), qt.Contains, "tally failed")
}

func TestValidLevel(t *testing.T) {
	c := qt.New(t)
	for _, level := range []string{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError} {
		c.Assert(ValidLevel(level), qt.IsTrue)
	}
	c.Assert(ValidLevel("trace"), qt.IsFalse)
	c.Assert(func() { Init("trace", "stderr", nil) }, qt.PanicMatches, `invalid log level: "trace"`)
}
