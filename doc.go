// Package atomix implements the client-session core of a Raft-backed
// replicated state machine: a leader-seeking client dispatcher on one
// side, and the server-side per-session bookkeeping that turns an
// ordered, replicated log into linearizable commands, consistency-graded
// queries, and ordered event delivery on the other.
//
// Leader election and log replication are not implemented here. This
// package consumes them as an oracle through ServiceContext and
// ServerContext: "this server is leader", "this entry is applied at
// index i". The wire encoding of requests and responses is likewise
// external, named through the ClientProtocol and ServerProtocol
// interfaces in protocol.go. Package memproto supplies one concrete,
// in-process implementation of those two interfaces for tests.
//
// Everything in this package is designed to run behind a single
// goroutine: an Executor. SessionContext and ClientConnection each
// own one, and every mutation of their state happens there. Code
// calling in from other goroutines hops onto the Executor first
// (see Executor.Submit) rather than taking a lock.
package atomix
