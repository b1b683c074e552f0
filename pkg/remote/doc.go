// Package remote implements the line-based TCP command protocols of the
// television: FollowTV (port 1986) and the network remote (port 4660).
//
// A session connects, writes one or more newline-terminated commands in
// order, optionally half-closes the write side, and accumulates the reply
// until the device closes the connection:
//
//	Idle -> Connecting -> Connected -> Writing -> AwaitingResponse -> Closed
//
// Connect and idle read are bounded by ChannelConfig.Timeout (5s). Ping runs
// only the connect phase under a shorter timeout (2s) and reports
// reachability as a boolean.
package remote
