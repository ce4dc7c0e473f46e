// Package metering provides domain models for usage quota and plan
// enforcement on the tools API.
//
// This package implements the metering bounded context, which is responsible
// for:
//   - Resolving who a request should be metered as (account or client address)
//   - Deriving the effective plan tier at the moment of each request
//   - Defining per-tier daily call limits
//   - The contracts for the per-day usage ledger and stored plan assignments
//
// Key Aggregates:
//   - PlanRecord: The stored plan assignment for one account
//
// Value Objects:
//   - Identity: The metering subject of a request (account id or address)
//   - QuotaPolicy: Immutable tier-to-limit mapping
//   - Decision: Outcome of one conditional ledger increment
//
// All quota correctness lives in the ledger's single conditional statement;
// nothing in this package holds mutable counter state.
package metering
