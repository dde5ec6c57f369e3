package types

// PinnedFile is a media file uploaded to the pinning gateway
type PinnedFile struct {
	Key         string `json:"key"`
	CID         string `json:"cid,omitempty"`
	URI         string `json:"uri"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
