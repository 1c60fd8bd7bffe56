package syncmsg

import "errors"

// FileState describes one file in a project snapshot.
type FileState struct {
	Path        string `json:"pth"`
	Fingerprint string `json:"fpr"`
	Digest      string `json:"dig,omitempty"`
	Size        int64  `json:"len"`
}

// ProjectState announces the full set of files one side holds.
type ProjectState struct {
	ShortID string      `json:"sid"`
	Files   []FileState `json:"fls"`
}

func (*ProjectState) MessageType() MessageType { return MsgProjectState }

func (s *ProjectState) validate() error {
	for _, f := range s.Files {
		if f.Path == "" {
			return errors.New("project state entry without path")
		}
	}
	return nil
}

func NewProjectState(shortID string, files []FileState) *Message {
	if files == nil {
		files = []FileState{}
	}
	return newMessage(&ProjectState{ShortID: shortID, Files: files})
}
