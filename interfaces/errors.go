package interfaces

import "errors"

var (
	errInvalidTransactionTimeout = errors.New("interfaces: transaction timeout must be positive")
	errInvalidMaxRetransmits     = errors.New("interfaces: max retransmits must be positive")
)
