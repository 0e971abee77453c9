// Package monitor provides a small monitor primitive: a mutex, a condition variable and
// predicate guarded waiting.
//
// The router uses one Monitor per proxy inbox and one per in-flight request:
//
//	m := monitor.New()
//	var done bool
//
//	go m.Signal(func() { done = true })
//
//	m.Wait(func() bool { return done })
package monitor
