package errx

import (
	"net/http"
)

// WrapRedis maps Redis errors to AppError with a gateway status.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}
