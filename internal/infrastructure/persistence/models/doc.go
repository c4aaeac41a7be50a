// Package models contains the GORM persistence models for the accounting
// sync domain. Domain entities stay free of storage tags; each model carries
// ToDomain/FromDomain conversions.
package models
