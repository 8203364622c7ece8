package signal

import (
	"regexp"
	"strings"
)

var spaceRun = regexp.MustCompile(`\s+`)

// Normalize flattens raw alert text into the canonical single-line uppercase
// form the classifier rules match against. The rules run in a fixed order;
// reordering them changes the output for real-world alerts.
func Normalize(text string) string {
	t := strings.ReplaceAll(text, "\n", " | ")
	t = strings.TrimPrefix(t, "ALERT: ")
	t = strings.ToUpper(t)
	t = strings.TrimPrefix(t, "| ")
	t = strings.ReplaceAll(t, " IN: ", "IN ")
	t = spaceRun.ReplaceAllString(t, " ")
	t = strings.ReplaceAll(t, "|IN", "| IN")
	return t
}
