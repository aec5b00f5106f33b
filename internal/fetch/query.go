package fetch

import (
	"fmt"
	"strconv"
	"time"
)

// Mode selects the fetch command.
type Mode string

const (
	ByCode Mode = "code"
	ByTime Mode = "time"
)

// ParseMode accepts "code" or "time".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ByCode, ByTime:
		return m, nil
	}
	return "", fmt.Errorf("fetch: unknown mode %q", s)
}

// LatestRevision asks the gateway for the newest revision.
const LatestRevision int64 = -1

// Query describes one fetch request.
type Query struct {
	Mode          Mode
	Namespace     int32
	QualifiedName string
	Revision      int64
	Market        string
	Code          string
	Granularity   int32
	From          time.Time
	To            time.Time
}

// TimeTag renders t as a millisecond epoch in decimal. The zero time is "0".
func TimeTag(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}
