package models

// Group is a set of messages classified into the same tag
type Group struct {
	Tag         string          `json:"tag"`
	Company     string          `json:"company"`
	Responsible string          `json:"responsible,omitempty"`
	Messages    []*EmailMessage `json:"emails"`
}

// AccountInfo is the display identity of an account in refresh results
type AccountInfo struct {
	ID    int64  `json:"id"`
	Email string `json:"account"`
}

// Outcome is the per-account result of a refresh: either Synced or SyncFailed.
type Outcome interface {
	outcome()
}

// Synced means the account's last sync attempt succeeded (or has not
// finished yet) and carries the account's groups.
type Synced struct {
	Groups []Group `json:"groups"`
}

// SyncFailed means the account's last sync attempt failed. Groups holds
// whatever was already committed for the account.
type SyncFailed struct {
	Reason string  `json:"error"`
	Groups []Group `json:"groups"`
}

func (Synced) outcome()     {}
func (SyncFailed) outcome() {}

// AccountResult is one entry of a refresh
type AccountResult struct {
	Account AccountInfo
	Outcome Outcome
}

// Groups returns the groups of the result regardless of outcome
func (r AccountResult) Groups() []Group {
	switch o := r.Outcome.(type) {
	case Synced:
		return o.Groups
	case SyncFailed:
		return o.Groups
	}
	return nil
}

// Failure returns the sync failure reason, if any
func (r AccountResult) Failure() (string, bool) {
	if f, ok := r.Outcome.(SyncFailed); ok {
		return f.Reason, true
	}
	return "", false
}
