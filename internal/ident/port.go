package ident

const (
	// PortRangeStart is the first port of the reserved rendezvous range.
	PortRangeStart = 7350
	// PortWindow is the number of ports in the reserved range.
	PortWindow = 250
)

// PortFor maps a project identity to a port in
// [PortRangeStart, PortRangeStart+PortWindow). The identity is first reduced
// to its short form, so a full hash and its short id land on the same port.
// Distinct projects can collide; callers must verify identity after connecting.
func PortFor(projectIdentity string) int {
	short := ShortID(projectIdentity)

	var h uint32
	for i := 0; i < len(short); i++ {
		h = h*31 + uint32(short[i])
	}
	return PortRangeStart + int(h%PortWindow)
}
