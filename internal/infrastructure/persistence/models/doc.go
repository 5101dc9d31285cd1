// Package models contains GORM models for the canonical production hierarchy
// tables. The record store never maps rows onto these types because deployed
// tables may use other column spellings; the models create and seed the
// canonical layout for development databases and tests.
package models
