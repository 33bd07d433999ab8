// Package sock implements the socket descriptor tables of the picokern
// network facility.
//
// Every task group owns one Table mapping small integer descriptors to
// socket slots. Tasks in the group share the table by reference count:
// spawning a task that inherits the group's sockets calls IncRef, an
// exiting task calls DecRef, and the last drop frees the slots. Within a
// table, each claimed slot carries its own count so that a socket
// duplicated across descriptors stays open until every holder releases
// it.
//
// The package only manages descriptors. Opening, connecting and moving
// data on a socket is the job of a protocol engine, wired in once at
// boot through Initialize.
package sock

// Engine is the protocol stack servicing the sockets handed out by
// descriptor tables.
type Engine interface {
	// Init brings the engine up. It is called once, before any socket
	// is allocated.
	Init() error
}

// Initialize brings up the protocol engine backing all socket tables.
// It is called once during system boot, before tasks run.
func Initialize(e Engine) error {
	if e == nil {
		return EINVAL
	}
	return e.Init()
}
