// Package workflow coordinates the background processing lanes of the
// fieldline daemon.
//
// Two lanes poll the store independently: the scrape lane claims pending
// properties, builds an extraction run against the imported portal session,
// and hands the run to the extraction processor; the submit lane claims
// visited properties one at a time and files their cases on the portal.
// Both lanes rely on the store's conditional-update claims, so any number
// of daemon processes can share one database without double-processing.
//
// A heartbeat monitor refreshes claims while work is in flight and reclaims
// properties whose worker died mid-claim.
package workflow
