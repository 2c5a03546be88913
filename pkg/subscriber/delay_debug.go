//go:build rhi_debug_delay

package subscriber

import (
	"os"
	"strconv"
	"time"
)

// Building with -tags rhi_debug_delay and RHI_DEBUG_HANDLER_DELAY_MS set
// widens the window between concurrently dispatched handler tasks, for
// manually exercising the race between two handler tasks racing to mutate
// the same order from a duplicate inbound event.
func init() {
	ms, err := strconv.Atoi(os.Getenv("RHI_DEBUG_HANDLER_DELAY_MS"))
	if err != nil || ms <= 0 {
		return
	}
	debugHandlerDelay = time.Duration(ms) * time.Millisecond
}
