package procurement

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrNoAccount          = Err("no wallet account connected")
	ErrUserRejected       = Err("request rejected in wallet")
	ErrTransactionTimeout = Err("transaction confirmation timed out")
	ErrTransactionFailed  = Err("transaction reverted on chain")
	ErrTrackingStopped    = Err("transaction tracking stopped")
	ErrProjectNotFound    = Err("project not found")
	ErrNotLoaded          = Err("projects have not been loaded")
)
