package registry

import (
	"crypto/rand"
	"io"
	"log/slog"
	"math/big"
	mathrand "math/rand/v2"
)

// Word pools for memorable room IDs. Kept small on purpose: the ID space
// only needs to outlast a room's lifetime, and collisions are re-rolled.
var (
	animals = []string{
		"otter", "heron", "lynx", "finch", "badger", "newt",
		"ibis", "marten", "plover", "stoat", "wren", "vole",
	}
	colors = []string{
		"amber", "cobalt", "coral", "ivory", "jade", "maroon",
		"ochre", "sepia", "teal", "umber", "violet", "indigo",
	}
	textures = []string{
		"brisk", "mellow", "quiet", "vivid", "gentle", "steady",
		"crisp", "soft", "bold", "calm", "keen", "warm",
	}
	places = []string{
		"harbor", "meadow", "summit", "grove", "canyon", "delta",
		"fjord", "lagoon", "mesa", "tundra", "valley", "ridge",
	}
)

var entropy io.Reader = rand.Reader

// randomIndex returns a random index in [0, max). Room IDs are join
// tokens, not secrets, so an entropy failure falls back to math/rand
// instead of failing the room create.
func randomIndex(max int) int {
	n, err := rand.Int(entropy, big.NewInt(int64(max)))
	if err != nil {
		slog.Warn("crypto entropy unavailable for room ID", "err", err)
		return mathrand.IntN(max)
	}
	return int(n.Int64())
}
