package call

// Role is the communication role of a participant in a room.
// Exactly two roles exist and they are complementary: the signer streams
// video for sign-language translation, the speaker uses speech-to-text.
type Role string

const (
	RoleASL Role = "ASL"
	RoleSTT Role = "STT"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleASL || r == RoleSTT
}

// Opposite returns the complementary role.
func (r Role) Opposite() Role {
	if r == RoleASL {
		return RoleSTT
	}
	return RoleASL
}

// Position is a participant's slot in a room. The room's user list is
// ordered: index 0 is the host.
type Position int

const (
	PositionHost Position = iota
	PositionGuest
)

// Assign maps (position, host role) to the participant's own role.
// The host keeps the role chosen at room creation; the guest gets the
// opposite. Pure and deterministic, so callers may recompute it freely
// while the remote participant is still unknown.
func Assign(pos Position, hostType Role) Role {
	if pos == PositionHost {
		return hostType
	}
	return hostType.Opposite()
}
