package ratelimit

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// retryAfterSeconds arredonda para cima; Retry-After nunca sai 0 quando há espera.
func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return formatInt(int(math.Ceil(d.Seconds())))
}
