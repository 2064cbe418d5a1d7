package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/davinci-ballotbox/log"
)

const usage = `ballotbox-cli manages election keys and ballots without a server.

Usage: ballotbox-cli <command> [flags]

Commands:
  keygen   generate an election keypair into a keystore
  encrypt  encrypt a choice with an election public key
  tally    decrypt and count a file of ballots with a stored key
  verify   check the decryption proofs of a results file

Run "ballotbox-cli <command> --help" for the flags of a command.
The keystore password may also be set with $BALLOTBOX_KEYSTORE_PASSWORD.
`

type command func(ctx context.Context, args []string, out io.Writer) error

var commands = map[string]command{
	"keygen":  keygenCmd,
	"encrypt": encryptCmd,
	"tally":   tallyCmd,
	"verify":  verifyCmd,
}

func main() {
	log.Init(log.LogLevelWarn, "stderr", nil)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the command named by the first argument.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(out, usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, run ballotbox-cli help", args[0])
	}
	return cmd(ctx, args[1:], out)
}
