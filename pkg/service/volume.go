package service

import (
	"fmt"
	"time"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/transaction"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// SetVolume sets the target's absolute volume (0..0x7F).
func (s *Session) SetVolume(volume uint8) error {
	return s.exec.do(func() error {
		if err := s.checkConnected(); err != nil {
			return err
		}
		if volume > wire.VolumeMask {
			return fmt.Errorf("%w: %d", ErrInvalidVolume, volume)
		}
		if !s.features.Has(wire.FeatureAdvancedControl | wire.FeatureTarget) {
			return ErrUnsupported
		}
		if volume == s.volume {
			return ErrAlreadySet
		}
		_, err := s.sendCommand(wire.NewSetAbsoluteVolume(volume))
		return err
	})
}

// ensureVolumeSubscription registers for VOLUME_CHANGED unless a
// registration is already held or was refused on this connection.
func (s *Session) ensureVolumeSubscription() error {
	if s.volState != volumeIdle {
		return nil
	}
	label, err := s.sendCommand(wire.NewRegisterNotification(wire.EventVolumeChanged))
	if err != nil {
		return err
	}
	s.volLabel = label
	s.setVolumeState(volumeRegistering)
	return nil
}

func (s *Session) handleVolumeNotification(label uint8, rsp *wire.Response) {
	res, _ := rsp.Params.(*wire.NotificationResult)
	if rsp.Status.IsError() || res == nil {
		s.debugLog("session: volume registration refused", "status", rsp.Status.String())
		s.release(label)
		s.volLabel = transaction.NoLabel
		s.setVolumeState(volumeRejected)
		return
	}

	switch rsp.Code {
	case wire.CodeInterim:
		s.setVolumeState(volumeSubscribed)
		s.updateVolume(res.Volume)

	case wire.CodeChanged:
		s.updateVolume(res.Volume)
		s.reRegisterVolume(label)

	default:
		s.warnLog("session: unexpected volume notification", "code", rsp.Code.String())
		s.release(label)
		s.volLabel = transaction.NoLabel
		s.setVolumeState(volumeIdle)
	}
}

// reRegisterVolume renews the subscription on the label it already holds.
func (s *Session) reRegisterVolume(label uint8) {
	cmd := wire.NewRegisterNotification(wire.EventVolumeChanged)
	err := s.resend(label, cmd)
	if err == nil {
		err = s.pool.ArmTimer(label, cmd.PDU, s.config.InterimTimeout)
	}
	if err != nil {
		s.warnLog("session: volume re-registration failed", "error", err)
		s.release(label)
		s.volLabel = transaction.NoLabel
		s.setVolumeState(volumeIdle)
		return
	}
	if req, ok := s.outstanding[label]; ok {
		req.sentAt = time.Now()
	}
	s.setVolumeState(volumeRegistering)
}

func (s *Session) handleSetVolumeResponse(rsp *wire.Response) {
	if err := statusError(rsp); err != nil {
		s.warnLog("session: set volume failed", "error", err)
		return
	}
	if res, ok := rsp.Params.(*wire.AbsoluteVolume); ok {
		s.updateVolume(res.Volume)
	}
}

func (s *Session) updateVolume(volume uint8) {
	volume &= wire.VolumeMask
	if volume == s.volume {
		return
	}
	s.volume = volume
	s.post(func(cb Callbacks, peer string) {
		cb.VolumeChanged(peer, volume)
	})
}

func (s *Session) setVolumeState(st volumeState) {
	if st == s.volState {
		return
	}
	from := s.volState
	s.volState = st
	s.logState(log.StateEntityNotification, from.String(), st.String(), wire.EventVolumeChanged.String())
}
