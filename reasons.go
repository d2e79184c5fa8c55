package wiremux

type Reason = string

// These strings are part of the observable contract: dependent logic
// matches on them verbatim.
const (
	ReasonTransportClose            Reason = "transport close"
	ReasonClientError               Reason = "client error"
	ReasonClientNamespaceDisconnect Reason = "client namespace disconnect"
	ReasonServerNamespaceDisconnect Reason = "server namespace disconnect"
	ReasonForcedServerClose         Reason = "forced server close"
)
