package syncmsg

import "time"

// Conflict tells the peer that the sender saw divergent content for Path.
// Local and Remote are from the sender's point of view.
type Conflict struct {
	Path       string    `json:"pth"`
	Local      string    `json:"lfp"`
	Remote     string    `json:"rfp"`
	Reason     string    `json:"rsn,omitempty"`
	DetectedAt time.Time `json:"det"`
}

func (*Conflict) MessageType() MessageType { return MsgConflict }

func (c *Conflict) validate() error {
	if c.Path == "" {
		return errMissingPath
	}
	return nil
}

func NewConflict(path, local, remote, reason string, detectedAt time.Time) *Message {
	return newMessage(&Conflict{
		Path:       path,
		Local:      local,
		Remote:     remote,
		Reason:     reason,
		DetectedAt: detectedAt.UTC(),
	})
}
