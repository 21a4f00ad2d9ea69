// Package model holds the domain vocabulary: actors, the closed inbound
// event union, outbound wire payloads, and handler error codes. It has no
// dependencies on the registry or service layers.
package model

// ActorKind is the audience segment a connection authenticates as. The
// wire value doubles as the user_type JSON field.
type ActorKind string

const (
	KindCustomer     ActorKind = "customer"
	KindProfessional ActorKind = "professional"
	KindAdmin        ActorKind = "admin"
)

func (k ActorKind) Valid() bool {
	switch k {
	case KindCustomer, KindProfessional, KindAdmin:
		return true
	default:
		return false
	}
}

// Actor is a verified identity bound to a connection after the identity
// gate passes.
type Actor struct {
	ID          string
	Kind        ActorKind
	DisplayName string
}
