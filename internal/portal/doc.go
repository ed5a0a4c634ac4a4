// Package portal defines the contract with the external utility portal:
// the automation client interface, the error taxonomy shared across the
// pipeline, shared-session failure classification, and the merge rules for
// extracted customer data.
package portal
