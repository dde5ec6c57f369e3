package types

// returned after a completed login
type OutputLogin struct {
	Address string        `json:"address"`
	Funding FundingResult `json:"funding"`
}

type OutputAccount struct {
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
}

type OutputCommunityHash struct {
	CommunityHash string `json:"communityHash"`
}

// WatchedTransaction is what the transaction watcher stores per hash
type WatchedTransaction struct {
	Hash     string `json:"hash"`
	Status   string `json:"status"` // pending, success, failed
	VMStatus string `json:"vmStatus,omitempty"`
	Version  string `json:"version,omitempty"`
	Updated  int64  `json:"updated"`
}

const (
	WatchStatusPending = "pending"
	WatchStatusSuccess = "success"
	WatchStatusFailed  = "failed"
)
