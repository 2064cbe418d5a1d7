package service

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/davinci-ballotbox/ballot"
	"github.com/vocdoni/davinci-ballotbox/crypto/ecc/bn254"
	"github.com/vocdoni/davinci-ballotbox/crypto/elgamal"
	"github.com/vocdoni/davinci-ballotbox/db/metadb"
	"github.com/vocdoni/davinci-ballotbox/finalizer"
	"github.com/vocdoni/davinci-ballotbox/keystore"
	"github.com/vocdoni/davinci-ballotbox/storage"
)

func TestFinalizerService(t *testing.T) {
	c := qt.New(t)

	store := storage.New(metadb.NewTest(t))
	keys, err := keystore.New(t.TempDir(), "service-test")
	c.Assert(err, qt.IsNil)

	kp, err := elgamal.GenerateKeypair(bn254.CurveType, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(keys.Store(7, kp), qt.IsNil)
	c.Assert(store.NewElection(&storage.Election{
		ID:             7,
		CandidateCount: 2,
		Curve:          bn254.CurveType,
		PublicKey:      kp.PublicKey.Bytes(),
	}), qt.IsNil)
	for i, choice := range []int{1, 1, 0} {
		b, err := ballot.Encrypt(kp.PublicKey, 2, choice, ballot.Context{ElectionID: 7, VoterNonce: []byte{byte(i)}}, nil)
		c.Assert(err, qt.IsNil)
		c.Assert(store.PushBallot(7, b), qt.IsNil)
	}

	finService := NewFinalizer(store, keys, finalizer.Options{Workers: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c.Assert(finService.Running(), qt.IsFalse)
	err = finService.Start(ctx, time.Minute)
	c.Assert(err, qt.IsNil)
	defer finService.Stop()
	c.Assert(finService.Running(), qt.IsTrue)

	// starting an already running service fails
	err = finService.Start(ctx, time.Minute)
	c.Assert(err, qt.ErrorMatches, "service already running")

	// stop and restart
	finService.Stop()
	c.Assert(finService.Running(), qt.IsFalse)
	c.Assert(finService.Enqueue(7), qt.IsFalse)
	err = finService.Start(ctx, time.Minute)
	c.Assert(err, qt.IsNil)

	c.Assert(store.UpdateElectionStatus(7, storage.ElectionStatusClosed), qt.IsNil)
	c.Assert(finService.Enqueue(7), qt.IsTrue)
	res, err := finService.WaitUntilFinalized(ctx, 7)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts(), qt.DeepEquals, []uint64{1, 2})

	e, err := store.Election(7)
	c.Assert(err, qt.IsNil)
	c.Assert(e.Status, qt.Equals, storage.ElectionStatusTallied)
}

func TestAPIService(t *testing.T) {
	c := qt.New(t)

	store := storage.New(metadb.NewTest(t))
	keys, err := keystore.New(t.TempDir(), "service-test")
	c.Assert(err, qt.IsNil)

	apiService := NewAPI(store, keys, nil, "127.0.0.1", 0, true)
	apiService.SetCryptoConfig(bn254.CurveType, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Assert(apiService.Start(ctx), qt.IsNil)
	c.Assert(apiService.Start(ctx), qt.ErrorMatches, "service already running")
	host, port := apiService.HostPort()
	c.Assert(host, qt.Equals, "127.0.0.1")
	c.Assert(port, qt.Equals, 0)
	apiService.Stop()

	// an invalid default curve prevents the server from starting
	apiService.SetCryptoConfig("p256", nil)
	c.Assert(apiService.Start(ctx), qt.ErrorMatches, "failed to start API server: .*")
	c.Assert(apiService.API, qt.IsNil)
}
