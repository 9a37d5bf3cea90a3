// Package results holds tool outcomes between the moment a surface reports
// them and the moment the waiting invocation consumes them.
//
// Writers are inbound callbacks (the HTTP result endpoint or the host
// command surface); readers are correlator wait loops. TakeIfPresent is the
// only consumption primitive, so a result reaches at most one waiter.
// Results nobody consumes (the waiter timed out, or the id was never
// issued) are reaped after a TTL and the map is capped at MaxEntries.
package results
