// Package server implements the replica process: a server owning one tuple store
// that executes the requests it receives over a framed transport connection.
//
// Requests are mapped onto the store as follows:
//
//	OUT      -> Put                  RESULT 0
//	IN       -> Get(Remove, One)     TUPLES
//	IN_ALL   -> Get(Remove, All)     TUPLES
//	COPY     -> Get(Keep, One)       TUPLES
//	COPY_ALL -> Get(Keep, All)       TUPLES
//	SIZE     -> Size                 RESULT n
//	QUIT     -> ends the connection  RESULT 0
//
// Every failure is answered with ERROR/-1. A malformed frame is answered the same way
// and the connection is kept, a broken stream ends the connection.
//
// The store is shared by all connections and guarded by one lock (table.NewSynchronized).
package server
