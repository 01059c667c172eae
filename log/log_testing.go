//go:build testing

package log

import "github.com/rs/zerolog"

func init() {
	logger = logger.Level(zerolog.WarnLevel)
}
