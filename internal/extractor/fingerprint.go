package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"factorylift/internal/component"
)

// Fingerprint returns a deterministic content hash of a component's identity
// and definition. encoding/json sorts map keys, so equal definitions hash equally.
func Fingerprint(c *component.Component) string {
	if c == nil {
		return ""
	}
	def, err := json.Marshal(c.Definition)
	if err != nil {
		def = nil
	}
	fingerprint := strings.Join([]string{
		string(c.Dialect),
		string(c.Kind),
		c.SubType,
		c.Name,
		string(def),
	}, "|")
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:8])
}
