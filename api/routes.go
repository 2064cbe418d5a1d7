package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Election endpoints
	ElectionURLParam  = "electionId"                            // URL parameter for election ID
	ElectionsEndpoint = "/elections"                            // GET: List elections, POST: Create election
	ElectionEndpoint  = "/elections/{" + ElectionURLParam + "}" // GET: Get election info

	// Ballot endpoints
	EncryptEndpoint = ElectionEndpoint + "/encrypt" // POST: Encrypt a choice
	BallotsEndpoint = ElectionEndpoint + "/ballots" // POST: Submit a ballot, GET: Count ballots

	// Tally endpoints
	TallyEndpoint   = ElectionEndpoint + "/tally"   // POST: Start an asynchronous tally
	ResultsEndpoint = ElectionEndpoint + "/results" // GET: Get the election results

	// Job endpoints
	JobURLParam = "jobId"                       // URL parameter for job ID
	JobEndpoint = "/jobs/{" + JobURLParam + "}" // GET: Get tally job status
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. If the placeholder is not part of the
// path, the parameter is added as a query parameter.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", path, sep, url.QueryEscape(key), url.QueryEscape(param))
}

// ElectionPath returns endpoint with the election ID placeholder replaced.
func ElectionPath(endpoint string, electionID uint64) string {
	return EndpointWithParam(endpoint, ElectionURLParam, fmt.Sprint(electionID))
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
