package fabricconfig

import "os"

// lookupEnv is a thin indirection over os.LookupEnv so tests can be written
// without mutating real process environment state if a future change wants
// an injectable source; today it is a direct passthrough.
func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}
