package ident

import (
	"errors"
	"strings"
)

var ErrEmptyProjectHash = errors.New("project hash is empty")

// ProjectInfo identifies a synced project.
type ProjectInfo struct {
	// FullHash is opaque and stable for the lifetime of the project.
	FullHash string `json:"fullHash" yaml:"fullHash"`
	// ShortID is ShortID(FullHash).
	ShortID string `json:"shortId" yaml:"shortId"`
}

// NewProjectInfo builds a ProjectInfo from a full project hash.
func NewProjectInfo(fullHash string) (ProjectInfo, error) {
	fullHash = strings.TrimSpace(fullHash)
	if fullHash == "" {
		return ProjectInfo{}, ErrEmptyProjectHash
	}
	return ProjectInfo{FullHash: fullHash, ShortID: ShortID(fullHash)}, nil
}

// Port is the rendezvous port of the project.
func (p ProjectInfo) Port() int {
	return PortFor(p.ShortID)
}

// Matches reports whether identity (a full hash or a short id) refers to p.
func (p ProjectInfo) Matches(identity string) bool {
	if identity == "" {
		return false
	}
	return ShortID(identity) == p.ShortID
}

// HasFullHash reports whether p was built from a full hash rather than a short id.
func (p ProjectInfo) HasFullHash() bool {
	return p.FullHash != p.ShortID
}

// IsShortID reports whether id is already in short form.
func IsShortID(id string) bool {
	return id != "" && ShortID(id) == id
}
