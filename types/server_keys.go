package types

// ServerKeys is the JSON file holding the ed25519 keys that sign session tokens
type ServerKeys struct {
	Type       string `json:"type"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	Created    int64  `json:"created"`
}

// MasterKeyFile is the output of the masterkey command (community key wrapping)
type MasterKeyFile struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Key     string `json:"key"`
	Created int64  `json:"created"`
}
