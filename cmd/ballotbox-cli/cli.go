package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/davinci-ballotbox/ballot"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/curves"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/keystore"
	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/tally"
	"github.com/vocdoni/davinci-ballotbox/types"
)

const (
	defaultKeystoreDir = "keys"
	passwordEnv        = "BALLOTBOX_KEYSTORE_PASSWORD"
)

// keyInfo is the public output of keygen.
type keyInfo struct {
	ElectionID  uint64         `json:"electionId"`
	Curve       string         `json:"curve"`
	PublicKey   types.HexBytes `json:"publicKey"`
	Fingerprint string         `json:"privateKeyFingerprint"`
	KeyFile     string         `json:"keyFile"`
}

type keystoreFlags struct {
	dir      *string
	password *string
}

func addKeystoreFlags(fs *flag.FlagSet) keystoreFlags {
	return keystoreFlags{
		dir:      fs.String("keystore", defaultKeystoreDir, "keystore directory"),
		password: fs.StringP("password", "k", os.Getenv(passwordEnv), "keystore password (or $"+passwordEnv+")"),
	}
}

func (f keystoreFlags) open() (*keystore.KeyStore, error) {
	if *f.password == "" {
		return nil, fmt.Errorf("keystore password is required")
	}
	return keystore.New(*f.dir, *f.password)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

// keygenCmd generates the keypair of an election and stores the private key
// in the keystore. Only public information is printed.
func keygenCmd(_ context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("keygen")
	id := fs.Uint64("id", 0, "election ID")
	curve := fs.StringP("curve", "c", curves.Default, fmt.Sprintf("curve %v", curves.Curves()))
	force := fs.Bool("force", false, "replace an existing key")
	ksFlags := addKeystoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ks, err := ksFlags.open()
	if err != nil {
		return err
	}
	exists, err := ks.Exists(*id)
	if err != nil {
		return err
	}
	if exists && !*force {
		return fmt.Errorf("election %d already has a key, use --force to replace it", *id)
	}
	kp, err := elgamal.GenerateKeypair(*curve, nil)
	if err != nil {
		return err
	}
	defer kp.PrivateKey.Zero()
	if err := ks.Store(*id, kp); err != nil {
		return err
	}
	log.Infow("election key generated", "electionId", *id, "curve", *curve)
	return writeJSON(out, &keyInfo{
		ElectionID:  *id,
		Curve:       *curve,
		PublicKey:   kp.PublicKey.Bytes(),
		Fingerprint: kp.PrivateKey.Fingerprint(),
		KeyFile:     ks.Path(*id),
	})
}

// encryptCmd encrypts a choice. The ballot is printed, or appended as a JSON
// line to the --out file.
func encryptCmd(_ context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("encrypt")
	id := fs.Uint64("id", 0, "election ID")
	pubKey := fs.String("pubkey", "", "election public key (hex)")
	curve := fs.StringP("curve", "c", curves.Default, fmt.Sprintf("curve %v", curves.Curves()))
	candidates := fs.IntP("candidates", "n", 0, "number of candidates")
	choice := fs.Int("choice", -1, "candidate index, in [0, candidates)")
	nonce := fs.String("nonce", "", "voter nonce (hex), bound to the ballot ID")
	output := fs.StringP("out", "o", "", "ballots file to append the ballot to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pk, err := elgamal.ParsePublicKey(*curve, *pubKey)
	if err != nil {
		return err
	}
	voterNonce, err := types.HexStringToHexBytes(*nonce)
	if err != nil {
		return fmt.Errorf("invalid nonce: %w", err)
	}
	b, err := ballot.Encrypt(pk, *candidates, *choice, ballot.Context{ElectionID: *id, VoterNonce: voterNonce}, nil)
	if err != nil {
		return err
	}
	if *output == "" {
		return writeJSON(out, b)
	}
	f, err := os.OpenFile(*output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, b.ID.Hex())
	return err
}

// tallyCmd decrypts and counts a ballots file with the key of the election.
func tallyCmd(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("tally")
	id := fs.Uint64("id", 0, "election ID")
	candidates := fs.IntP("candidates", "n", 0, "number of candidates")
	ballotsFile := fs.StringP("ballots", "b", "", "ballots file, a JSON array or JSON lines")
	workers := fs.IntP("workers", "w", 0, "number of decryption workers (0 for the number of CPUs)")
	proofs := fs.Bool("proofs", false, "include a decryption proof per ballot")
	output := fs.StringP("out", "o", "", "write the results to a file instead of stdout")
	ksFlags := addKeystoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ks, err := ksFlags.open()
	if err != nil {
		return err
	}
	ballots, err := readBallots(*ballotsFile)
	if err != nil {
		return err
	}
	kp, err := ks.Load(*id)
	if err != nil {
		return err
	}
	defer kp.PrivateKey.Zero()

	opts := []tally.Option{tally.WithElectionID(*id), tally.WithWorkers(*workers)}
	if *proofs {
		opts = append(opts, tally.WithDecryptionProofs())
	}
	res, err := tally.DecryptAndTally(ctx, kp.PrivateKey, ballots, *candidates, opts...)
	if err != nil {
		return err
	}
	if res.FailedDecryptions > 0 {
		log.Warnw("some ballots were not counted", "failed", res.FailedDecryptions)
	}
	if *output == "" {
		return writeJSON(out, res)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d ballots, %d counted, results written to %s\n",
		res.SubmittedBallots, res.TotalVotes, filepath.Clean(*output))
	return err
}

// verifyCmd checks a results file against the ballots and the public key.
func verifyCmd(_ context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("verify")
	pubKey := fs.String("pubkey", "", "election public key (hex)")
	curve := fs.StringP("curve", "c", curves.Default, fmt.Sprintf("curve %v", curves.Curves()))
	ballotsFile := fs.StringP("ballots", "b", "", "ballots file, a JSON array or JSON lines")
	resultsFile := fs.StringP("results", "r", "", "results file produced by tally --proofs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pk, err := elgamal.ParsePublicKey(*curve, *pubKey)
	if err != nil {
		return err
	}
	ballots, err := readBallots(*ballotsFile)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*resultsFile)
	if err != nil {
		return err
	}
	res := &tally.Result{}
	if err := json.Unmarshal(data, res); err != nil {
		return fmt.Errorf("invalid results file: %w", err)
	}
	if err := tally.VerifyResult(pk, ballots, res); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "results verified: %v\n", res.Counts())
	return err
}

// readBallots reads a JSON array of ballots or a stream of ballot objects.
func readBallots(path string) ([]*ballot.EncryptedBallot, error) {
	if path == "" {
		return nil, fmt.Errorf("ballots file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	var ballots []*ballot.EncryptedBallot
	if bytes.HasPrefix(data, []byte("[")) {
		if err := json.Unmarshal(data, &ballots); err != nil {
			return nil, fmt.Errorf("invalid ballots file: %w", err)
		}
		return ballots, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		b := &ballot.EncryptedBallot{}
		if err := dec.Decode(b); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid ballot %d: %w", len(ballots), err)
		}
		ballots = append(ballots, b)
	}
	return ballots, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
