// Package domain defines the core business entities of the prior-authorization
// system: authorization requests and their status lifecycle, notifications, and
// the actors that drive transitions.
package domain
