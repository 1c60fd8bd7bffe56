package syncmsg

import "errors"

// Hello is the first message on every connection.
type Hello struct {
	ProjectHash string `json:"phs"`
	ShortID     string `json:"sid"`
	Peer        string `json:"per"`
	Session     string `json:"ses"`
	Version     string `json:"ver"`
}

func (*Hello) MessageType() MessageType { return MsgHello }

func (h *Hello) validate() error {
	if h.ShortID == "" && h.ProjectHash == "" {
		return errors.New("hello without project identity")
	}
	return nil
}

func NewHello(projectHash, shortID, peer, session, version string) *Message {
	return newMessage(&Hello{
		ProjectHash: projectHash,
		ShortID:     shortID,
		Peer:        peer,
		Session:     session,
		Version:     version,
	})
}
