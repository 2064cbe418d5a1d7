package log_test

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-ballotbox/log"
)

const hookDelay = 50 * time.Millisecond

// watchErrors installs the error hook and returns the channel its handler
// reports to. The previous logger is restored when the subtest ends.
func watchErrors(c *qt.C) chan string {
	ch := make(chan string, 2)
	previous := log.EnablePanicOnErrorWithHandler(c.Name(), hookDelay, func(msg string) {
		ch <- msg
	})
	c.Cleanup(func() { log.RestoreLogger(previous) })
	return ch
}

func expectNothing(c *qt.C, ch chan string) {
	select {
	case got := <-ch:
		c.Fatalf("unexpected hook call: %s", got)
	case <-time.After(4 * hookDelay):
	}
}

func TestPanicOnErrorHook(t *testing.T) {
	c := qt.New(t)

	c.Run("fires on error", func(c *qt.C) {
		ch := watchErrors(c)
		log.Errorw(errors.New("decryption failed"), "tally aborted")
		select {
		case got := <-ch:
			c.Assert(got, qt.Matches, `ERROR found in logs during test TestPanicOnErrorHook/fires_on_error: tally aborted`)
		case <-time.After(10 * hookDelay):
			c.Fatalf("expected the error hook to fire")
		}
	})

	c.Run("fires once", func(c *qt.C) {
		ch := watchErrors(c)
		log.Error("first")
		log.Error("second")
		select {
		case got := <-ch:
			c.Assert(got, qt.Matches, `.*: first`)
		case <-time.After(10 * hookDelay):
			c.Fatalf("expected the error hook to fire")
		}
		expectNothing(c, ch)
	})

	c.Run("ignores lower levels", func(c *qt.C) {
		ch := watchErrors(c)
		log.Warnw("ballot rejected", "electionId", 1)
		log.Infow("election created")
		log.Debugw("ballot submitted")
		expectNothing(c, ch)
	})

	c.Run("restored logger has no hook", func(c *qt.C) {
		ch := make(chan string, 1)
		previous := log.EnablePanicOnErrorWithHandler(c.Name(), hookDelay, func(msg string) {
			ch <- msg
		})
		log.RestoreLogger(previous)
		log.Error("after restore")
		expectNothing(c, ch)
	})
}
