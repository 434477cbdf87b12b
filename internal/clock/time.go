package clock

import (
	"fmt"
	"time"
)

func nowMs() int64 {
	return time.Now().UnixMilli()
}

func formatID(prefix string, n uint64) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}
