/*
Package events provides an in-memory broker for fanning out a single
runner connection's outbound event stream to one writer goroutine.

# Architecture

Every accepted connection owns exactly one Broker and one subscriber:
the connection's writer goroutine. Any number of request-handling
goroutines (one per inbound tayloredRun/listDirectory/downloadFile
event) publish onto the broker concurrently; the broker serializes
them onto the subscriber channel so the socket is only ever written
from one goroutine.

	producer goroutines            broker              writer goroutine
	(tayloredRun #1)   ──┐                         ┌──  encodes + writes
	(tayloredRun #2)   ──┼──▶ eventCh ──▶ broadcast ┼──  one JSON line
	(listDirectory)    ──┘                         └──  per event

Publish never blocks on a slow subscriber: a full subscriber buffer
drops the event rather than stalling the broker's distribution loop.

# Event names

The Name constants are the outbound event types a runner agent writes
back to its connected client: TayloredOutput and TayloredError carry
streamed child-process output tagged with a snippet id; TayloredRunError
reports a failure that aborts a run before or during execution;
DirectoryListing and FileContent answer listDirectory and downloadFile
requests.
*/
package events
