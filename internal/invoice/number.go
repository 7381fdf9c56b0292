package invoice

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const numberSuffixLen = 6

// GenerateNumber returns INV-<YYYYMMDD>-<6 uppercase hex chars>.
func GenerateNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:numberSuffixLen])
	return "INV-" + now.Format("20060102") + "-" + suffix
}
