// Package repository defines the persistence contracts of the identity
// provider: OAuth clients, authorization codes, refresh tokens and consent
// grants. Implementations live under internal/store.
package repository
