package services

import (
	"fmt"
	"time"
)

const noUptime = "-"

// FormatUptime renders d as "N days, M hours".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	return fmt.Sprintf("%d days, %d hours", hours/24, hours%24)
}
