package dispatch

import (
	"context"

	"github.com/rad-roots-labs/rhi/pkg/transport"
)

// EmitFeedback publishes a job-feedback event referencing the offending
// event. Any transport error while emitting feedback is logged and
// swallowed — feedback delivery is best-effort, never itself a reason to
// fail the handler task.
func EmitFeedback(ctx context.Context, deps Deps, ev transport.SignedEvent, handlerErr error) {
	builder := deps.Transport.BuildJobFeedback(ev, transport.JobFeedbackError, handlerErr.Error())
	if _, err := deps.Transport.SendEventBuilder(ctx, builder); err != nil {
		deps.logf("feedback_send_failed event=%s err=%v", ev.ID, err)
	}
}
