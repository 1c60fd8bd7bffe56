package syncmsg

import "errors"

var errMissingPath = errors.New("missing path")

// FileUpsert carries the full content of one file.
// Base is the fingerprint the sender last agreed on for the path, empty if none.
// Force resolves a conflict in favour of the sender.
type FileUpsert struct {
	Path        string `json:"pth"`
	Content     []byte `json:"con"`
	Fingerprint string `json:"fpr"`
	Base        string `json:"bas,omitempty"`
	Force       bool   `json:"frc,omitempty"`
}

func (*FileUpsert) MessageType() MessageType { return MsgFileUpsert }

func (f *FileUpsert) validate() error {
	if f.Path == "" {
		return errMissingPath
	}
	return nil
}

// FileDelete requests removal of a file. Base is the fingerprint the sender last
// agreed on, so the receiver can refuse when its copy has moved on.
type FileDelete struct {
	Path  string `json:"pth"`
	Base  string `json:"bas,omitempty"`
	Force bool   `json:"frc,omitempty"`
}

func (*FileDelete) MessageType() MessageType { return MsgFileDelete }

func (f *FileDelete) validate() error {
	if f.Path == "" {
		return errMissingPath
	}
	return nil
}

// DeleteAck answers a FileDelete.
type DeleteAck struct {
	OriginalId string `json:"oid"`
	Path       string `json:"pth"`
	Accepted   bool   `json:"acc"`
	Reason     string `json:"rsn,omitempty"`
}

func (*DeleteAck) MessageType() MessageType { return MsgDeleteAck }

func (a *DeleteAck) validate() error {
	if a.Path == "" {
		return errMissingPath
	}
	return nil
}

func NewFileUpsert(path string, content []byte, fingerprint, base string) *Message {
	return newMessage(&FileUpsert{
		Path:        path,
		Content:     content,
		Fingerprint: fingerprint,
		Base:        base,
	})
}

func NewFileDelete(path, base string) *Message {
	return newMessage(&FileDelete{Path: path, Base: base})
}

// NewForcedUpsert makes content the agreed version on both sides.
func NewForcedUpsert(path string, content []byte, fingerprint string) *Message {
	return newMessage(&FileUpsert{
		Path:        path,
		Content:     content,
		Fingerprint: fingerprint,
		Force:       true,
	})
}

// NewForcedDelete makes absence the agreed state on both sides.
func NewForcedDelete(path string) *Message {
	return newMessage(&FileDelete{Path: path, Force: true})
}

func NewDeleteAck(originalMsgId, path string, accepted bool, reason string) *Message {
	return newMessage(&DeleteAck{
		OriginalId: originalMsgId,
		Path:       path,
		Accepted:   accepted,
		Reason:     reason,
	})
}
