package cache

import "fmt"

func BatchStatusKey(channel string) string {
	return fmt.Sprintf("training:batch:%s", channel)
}

func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
