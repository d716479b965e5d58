// Package server runs the TCP file service: it binds the listener, selects
// the execution backend for the configured concurrency mode, and drives the
// per-connection request loop.
//
// The same request loop (ServeConn) serves both modes. In shared mode it runs
// on pool goroutines inside this process; in isolated mode each worker
// process, holding the inherited listening socket, runs it on one accepted
// connection at a time.
package server
