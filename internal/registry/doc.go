// Package registry tracks every active actuator connection in one shared
// directory and fans out change notifications to subscribed listeners.
//
// Exactly one Registry exists per process; it is constructed in main and
// passed by reference to every component that needs it. Mutations are
// globally serialized, reads hand out copies, and listeners run outside
// the registry lock so a slow or panicking listener can never stall
// registry operations or its peers.
package registry
