package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Id is a time-ordered, globally unique identifier. It embeds a millisecond
// timestamp prefix so lexical and chronological order agree, matching the
// "indexable id" the control plane uses for range scans.
type Id string

// NewId generates an Id for the given prefix (e.g. "evt", "ctx", "pipe").
// The format is "<prefix>_<unixMilliHex>_<uuid4hex>" so ids sort correctly by
// creation time within a single process.
func NewId(prefix string) Id {
	millis := time.Now().UnixMilli()

	return Id(prefix + "_" + formatHex(millis) + "_" + strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func formatHex(n int64) string {
	const hexDigits = "0123456789abcdef"

	if n == 0 {
		return "0"
	}

	var buf [16]byte

	i := len(buf)

	for n > 0 {
		i--
		buf[i] = hexDigits[n%16]
		n /= 16
	}

	return string(buf[i:])
}

// String returns the id's wire representation.
func (id Id) String() string {
	return string(id)
}

// Empty reports whether the id is unset.
func (id Id) Empty() bool {
	return id == ""
}
