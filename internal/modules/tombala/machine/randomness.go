package machine

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
)

// SeedSource yields a fresh secret server seed per game
type SeedSource func() (string, error)

// Drawer picks winning numbers in a provably fair way. A game commits to
// sha256(seed) when it starts; the seed is revealed in its GameRecord.
type Drawer struct {
	seeds SeedSource
}

// NewDrawer creates a drawer backed by crypto/rand
func NewDrawer() *Drawer {
	return &Drawer{seeds: randomSeed}
}

// NewDrawerWithSeeds uses src instead of crypto/rand
func NewDrawerWithSeeds(src SeedSource) *Drawer {
	return &Drawer{seeds: src}
}

// Commit returns a new seed and its public hash
func (d *Drawer) Commit() (seed string, hash string, err error) {
	seed, err = d.seeds()
	if err != nil {
		return "", "", fmt.Errorf("generate server seed: %w", err)
	}
	return seed, HashSeed(seed), nil
}

func randomSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashSeed is the commitment published before betting
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Pick selects one of candidates from HMAC-SHA512(seed, "<gameId>-<betsCount>")
func Pick(seed string, gameID int64, betsCount int, candidates []int) (int, error) {
	if len(candidates) == 0 {
		return 0, domain.ErrNoNumbersToDrawFrom
	}

	mac := hmac.New(sha512.New, []byte(seed))
	fmt.Fprintf(mac, "%d-%d", gameID, betsCount)
	sum := mac.Sum(nil)

	idx := binary.BigEndian.Uint64(sum[:8]) % uint64(len(candidates))
	return candidates[idx], nil
}

// Verify recomputes a record's draw from its revealed seed and the
// candidate set stored with it
func Verify(record *domain.GameRecord) bool {
	if HashSeed(record.ServerSeed) != record.SeedHash {
		return false
	}
	n, err := Pick(record.ServerSeed, record.GameID, record.TotalBets, record.Candidates)
	return err == nil && n == record.WinningNumber
}
