package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Record fingerprints cover business content only, never surrogate ids, so
// that the fingerprint of a record can be known before it is inserted.

// Fingerprint returns a hash of the part's business content, cross references included.
func (p Part) Fingerprint() string {
	c := p.Clone()
	c.ID = ""
	return hashJSON(c)
}

// Fingerprint returns a hash of the application's business content.
func (a VehicleApplication) Fingerprint() string {
	c := a.Clone()
	c.ID = ""
	c.PartID = ""
	return hashJSON(c)
}

// Fingerprint returns a hash of the alias's business content.
func (a VehicleAlias) Fingerprint() string {
	a.ID = ""
	return hashJSON(a)
}

// Fingerprint returns a hash of the whole state, ids included. Two loads of an
// unchanged catalog produce the same fingerprint regardless of row order.
func (s *State) Fingerprint() string {
	c := s.Clone()
	c.Sort()
	return hashJSON(c)
}

func hashJSON(v any) string {
	// encoding/json writes map keys in sorted order, so the output is stable.
	b, err := json.Marshal(v)
	if err != nil {
		panic("catalog: fingerprint marshal: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
