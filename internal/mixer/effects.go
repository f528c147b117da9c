package mixer

import (
	"context"
)

// runEffect executes a single reducer-emitted command. Failures are
// logged and never stop the loop; the scheduler retries failed commits on
// its own.
func (m *Mixer) runEffect(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case CmdApplyBrightness:
		if err := m.act.SetBrightness(c.Duty); err != nil {
			m.logger.Error("failed to apply brightness", "duty", c.Duty, "reason", c.Reason, "error", err)
			return
		}
		m.recorder.SetBrightness(c.Duty)
		m.logger.Info("brightness applied", "duty", c.Duty, "reason", c.Reason)

	case CmdRequestSave:
		m.recorder.SetEnabled(c.State.Enabled)
		if m.sched.RequestSave(c.State) {
			m.logger.Debug("save requested", "state", c.State)
		}

	case CmdPersistTick:
		if err := m.sched.Tick(ctx, c.Now); err != nil {
			m.logger.Warn("persistence tick failed", "error", err)
		}

	case CmdReportScale:
		m.logger.Info("scale factor changed", "factor", c.Factor)

	default:
		m.logger.Warn("unknown command type", "command", cmd.String())
	}
}
