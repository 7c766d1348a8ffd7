// Package models contains the GORM persistence models for users and grievances.
// Domain entities carry no ORM tags; each model owns its table mapping and the
// conversion to and from its domain type.
package models
