package types

// Community is the persisted channel key record. Key material is always sealed at rest:
// PublicKey and PrivateKey are sealed with a per community data key, which is wrapped by
// the master key KeyID.
type Community struct {
	BaseDocument
	CommunityHash string `json:"communityHash" validate:"required,len=64,hexadecimal"`
	PublicKey     string `json:"publicKey"`
	PrivateKey    string `json:"privateKey"`
	KeyID         string `json:"keyId"`
	WrappedKey    string `json:"wrappedKey"`
	Created       int64  `json:"created"`
	Modified      int64  `json:"modified"`
}

// CommunityChannelKeyPair is the decrypted form, only kept in memory
type CommunityChannelKeyPair struct {
	CommunityHash string `json:"communityHash"`
	PublicKey     string `json:"publicKey"`
	PrivateKey    string `json:"privateKey"`
}
