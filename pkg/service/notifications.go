package service

import (
	"time"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// handleNotification processes a REGISTER_NOTIFICATION response for one of
// the registry's events. The label stays reserved after INTERIM until the
// CHANGED arrives.
func (s *Session) handleNotification(label uint8, req *request, rsp *wire.Response) {
	if _, ok := s.registry.Lookup(req.event); !ok {
		s.debugLog("session: notification for untracked event", "event", req.event.String())
		s.release(label)
		return
	}

	res, _ := rsp.Params.(*wire.NotificationResult)
	failed := rsp.Status.IsError() || res == nil ||
		(rsp.Code != wire.CodeInterim && rsp.Code != wire.CodeChanged)
	if failed {
		s.release(label)
		s.dropEvent(label, req.event, rsp)
		return
	}
	if res.EventID != req.event {
		s.warnLog("session: notification event mismatch",
			"label", label,
			"want", req.event.String(),
			"got", res.EventID.String())
	}

	if rsp.Code == wire.CodeInterim {
		if err := s.registry.HandleInterim(label, req.event); err != nil {
			s.warnLog("session: registration", "event", req.event.String(), "error", err)
		}
		s.logState(log.StateEntityNotification, "REGISTERED", "INTERIM", req.event.String())
		s.onInterim(req.event, res)
		return
	}

	s.release(label)
	if err := s.registry.HandleChanged(req.event); err != nil {
		s.warnLog("session: re-registration", "event", req.event.String(), "error", err)
	}
	s.logState(log.StateEntityNotification, "INTERIM", "CHANGED", req.event.String())
	s.onChanged(req.event, res)
}

// dropEvent removes a failed registration for the rest of the connection.
// Timeouts are matched by label; rejections name the event directly.
func (s *Session) dropEvent(label uint8, event wire.EventID, rsp *wire.Response) {
	var (
		id      = event
		dropped bool
		err     error
	)
	if rsp.Status == wire.StatusTimeout {
		id, dropped, err = s.registry.HandleTimeout(label)
	} else {
		dropped, err = s.registry.HandleRejected(event)
	}
	if dropped {
		s.debugLog("session: notification dropped", "event", id.String(), "status", rsp.Status.String())
		s.logState(log.StateEntityNotification, "REGISTERED", "DROPPED", id.String())
	}
	if err != nil {
		s.warnLog("session: registration", "error", err)
	}
}

func (s *Session) onInterim(id wire.EventID, res *wire.NotificationResult) {
	switch id {
	case wire.EventPlayStatusChanged:
		s.playStatus = res.PlayStatus
		if res.PlayStatus == wire.PlayStatusPlaying {
			s.startPoll()
		}
		status := res.PlayStatus
		s.post(func(cb Callbacks, peer string) {
			cb.PlayStatusChanged(peer, status)
		})

	case wire.EventTrackChanged:
		if res.TrackUID != wire.InvalidTrackUID {
			s.trackUID = res.TrackUID
		}
	}
}

func (s *Session) onChanged(id wire.EventID, res *wire.NotificationResult) {
	switch id {
	case wire.EventPlayStatusChanged:
		s.playStatus = res.PlayStatus
		if res.PlayStatus == wire.PlayStatusPlaying {
			s.startPoll()
		} else {
			s.stopPoll()
		}
		status := res.PlayStatus
		s.post(func(cb Callbacks, peer string) {
			cb.PlayStatusChanged(peer, status)
		})

	case wire.EventTrackChanged:
		if res.TrackUID == wire.InvalidTrackUID {
			return
		}
		s.trackUID = res.TrackUID
		if err := s.proc.FetchElementAttributes(); err != nil {
			s.warnLog("session: fetch element attributes", "error", err)
		}

	case wire.EventAppSettingChanged:
		values := res.AppSettings
		s.post(func(cb Callbacks, peer string) {
			cb.PlayerAppSettingsChanged(peer, values)
		})

	case wire.EventPlayPosChanged:
		pos, status := res.Position, s.playStatus
		s.post(func(cb Callbacks, peer string) {
			cb.PlayPositionChanged(peer, 0, pos, status)
		})
	}
}

// startPoll begins periodic GetPlayStatus while the target is playing.
func (s *Session) startPoll() {
	if s.pollTimer != nil {
		return
	}
	s.pollGen++
	gen := s.pollGen
	s.pollTimer = time.AfterFunc(s.config.PlayStatusInterval, func() {
		s.exec.submit(func() { s.pollTick(gen) })
	})
	s.debugLog("session: play status polling started", "interval", s.config.PlayStatusInterval)
}

func (s *Session) stopPoll() {
	if s.pollTimer == nil {
		return
	}
	s.pollTimer.Stop()
	s.pollTimer = nil
	s.pollGen++
	s.debugLog("session: play status polling stopped")
}

func (s *Session) pollTick(gen uint64) {
	if s.pollTimer == nil || gen != s.pollGen {
		return
	}
	if _, err := s.sendCommand(wire.NewGetPlayStatus()); err != nil {
		s.debugLog("session: play status poll failed", "error", err)
	}
	s.pollTimer.Reset(s.config.PlayStatusInterval)
}

func (s *Session) handlePlayStatusResponse(rsp *wire.Response) {
	if err := statusError(rsp); err != nil {
		s.debugLog("session: get play status failed", "error", err)
		return
	}
	res, ok := rsp.Params.(*wire.PlayStatusResult)
	if !ok {
		return
	}
	s.post(func(cb Callbacks, peer string) {
		cb.PlayPositionChanged(peer, res.SongLength, res.SongPosition, res.Status)
	})
}
