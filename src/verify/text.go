package verify

import "fmt"

// Message keys understood by TextProvider implementations.
const (
	KeyRunVerification = "processor.gerrit.messages.build.run"
	KeyUpdating        = "processor.gerrit.messages.build.updating"
	KeyRetrieveError   = "repository.gerrit.messages.error.retrieve"
	KeyMerged          = "processor.gerrit.messages.build.verified.merged"
	KeyVerifiedPos     = "processor.gerrit.messages.build.verified.pos"
	KeyVerifiedNeg     = "processor.gerrit.messages.build.verified.neg"
	KeyVerifyFailed    = "processor.gerrit.messages.build.verified.failed"
	KeyNoRevision      = "processor.gerrit.messages.build.norevision"
)

// TextProvider resolves message keys to human-readable text.
type TextProvider interface {
	Text(key string, args ...interface{}) string
}

// Catalog is a TextProvider backed by printf formats.
type Catalog map[string]string

// Text formats the message for key. Unknown keys render as the key itself.
func (c Catalog) Text(key string, args ...interface{}) string {
	format, ok := c[key]
	if !ok {
		if len(args) == 0 {
			return key
		}
		return fmt.Sprintf("%s %v", key, args)
	}
	return fmt.Sprintf(format, args...)
}

// DefaultText is the English message catalog.
var DefaultText = Catalog{
	KeyRunVerification: "Run verification: %t",
	KeyUpdating:        "Updating change verification for repository %s",
	KeyRetrieveError:   "Unable to retrieve change for revision %s",
	KeyMerged:          "Change %s is merged, skipping verification",
	KeyVerifiedPos:     "Change %d patch set %d verified +1",
	KeyVerifiedNeg:     "Change %d patch set %d verified -1",
	KeyVerifyFailed:    "Failed to verify change %s",
	KeyNoRevision:      "No revision recorded for repository %s",
}
