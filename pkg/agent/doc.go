// Package agent implements the data-plane runner: a per-connection
// event channel that accepts tayloredRun, listDirectory, and
// downloadFile requests and streams tayloredOutput/tayloredError/
// directoryListing/fileContent events back, grounded on pkg/events for
// the producer/consumer fan-in onto one connection writer.
package agent
