package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vocdoni/davinci-ballotbox/log"
	"github.com/vocdoni/davinci-ballotbox/storage"
)

// startTally starts an asynchronous finalization of an election that no
// longer accepts ballots and returns the job ID to poll.
// POST /elections/{electionId}/tally
func (a *API) startTally(w http.ResponseWriter, r *http.Request) {
	election, ok := a.loadElection(w, r)
	if !ok {
		return
	}
	if a.finalizer == nil {
		ErrTallyUnavailable.Write(w)
		return
	}
	if election.AcceptsBallots(time.Now()) {
		ErrElectionNotClosed.Withf("election %d ends at %d", election.ID, election.EndTime).Write(w)
		return
	}
	job := TallyJob{
		ID:         uuid.New().String(),
		ElectionID: election.ID,
		Status:     JobStatusPending,
		CreatedAt:  time.Now().Unix(),
	}
	a.jobs.Set(job.ID, job)

	a.jobsWg.Add(1)
	go func() {
		defer a.jobsWg.Done()
		res, err := a.finalizer.Finalize(a.ctx, job.ElectionID)
		job.FinishedAt = time.Now().Unix()
		if err != nil {
			log.Errorw(err, "tally job failed")
			job.Status = JobStatusFailed
			job.Error = err.Error()
		} else {
			job.Status = JobStatusDone
			job.Result = res
		}
		a.jobs.Set(job.ID, job)
	}()

	log.Infow("tally job started", "jobId", job.ID, "electionId", election.ID)
	httpWriteJSON(w, &TallyJobResponse{JobID: job.ID})
}

// job returns the status of a tally job.
// GET /jobs/{jobId}
func (a *API) job(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, JobURLParam))
	if err != nil {
		ErrMalformedParam.Withf("invalid job ID: %v", err).Write(w)
		return
	}
	job, ok := a.jobs.Get(jobID.String())
	if !ok {
		ErrJobNotFound.Withf("job %s", jobID).Write(w)
		return
	}
	httpWriteJSON(w, &job)
}

// results returns the stored results of an election.
// GET /elections/{electionId}/results
func (a *API) results(w http.ResponseWriter, r *http.Request) {
	election, ok := a.loadElection(w, r)
	if !ok {
		return
	}
	res, err := a.storage.Results(election.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrResultsNotFound.Withf("election %d", election.ID).Write(w)
			return
		}
		ErrGenericInternalServerError.Withf("could not load results: %v", err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}
