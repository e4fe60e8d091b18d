package main

import "time"

const protocolVersion = 1

const (
	// writeWait bounds how long a single websocket write may stall before
	// the session is considered dead.
	writeWait = 5 * time.Second
	// heartbeatTimeout disconnects sessions that stop sending heartbeats.
	heartbeatTimeout = 15 * time.Second
	// storeTimeout bounds the background persistence of one death replay.
	storeTimeout = 5 * time.Second
)
