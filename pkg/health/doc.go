// Package health provides pluggable health checkers behind a single
// Checker interface, plus a Status type that debounces a noisy stream
// of Results into a stable healthy/unhealthy verdict. The orchestrator
// uses a TCPChecker to poll a freshly started runner's published port
// before reporting it ready and a DriverChecker to back its /healthz
// endpoint; the runner agent uses an ExecChecker at startup to fail
// fast if the external tool it shells out to is missing.
package health
