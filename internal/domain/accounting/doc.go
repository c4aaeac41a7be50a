// Package accounting contains the domain model for external accounting
// synchronization: provider codes and the ProviderClient port, the invoice
// sync projection and its state machine, sync jobs, integrations, the
// append-only sync audit log, and inbound webhook events.
//
// This package is pure domain logic. Concrete provider adapters, queue and
// resilience machinery, and persistence live in the infrastructure layer.
package accounting
