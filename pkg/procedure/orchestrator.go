package procedure

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rcctl/avrcp-go/pkg/notification"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Orchestrator errors.
var (
	ErrUnexpectedResponse = errors.New("response does not match procedure phase")
	ErrNotStarted         = errors.New("procedure not started")
)

// DefaultMaxElementRetries bounds GetElementAttributes retries after timeouts.
const DefaultMaxElementRetries = 3

// Sender issues a command on behalf of the procedure. It acquires a label,
// sends the command and arms its timer.
type Sender interface {
	Send(cmd *wire.Command) error
}

// Reporter receives the results of the procedure.
type Reporter interface {
	// PlayerSettings reports the discovered setting attributes and values.
	PlayerSettings(settings PlayerSettings)

	// PlayerSettingsChanged reports current setting values.
	PlayerSettingsChanged(values []wire.AttrValue)

	// TrackChanged reports element attributes of the current track.
	TrackChanged(attrs []wire.ElementAttribute)

	// PhaseChanged reports every phase transition.
	PhaseChanged(from, to Phase)
}

// Config configures an Orchestrator.
type Config struct {
	// ElementAttributes is the attribute list requested with
	// GetElementAttributes.
	ElementAttributes []wire.MediaAttrID

	// MaxElementRetries bounds retries of a timed out GetElementAttributes.
	// Zero uses DefaultMaxElementRetries; negative disables retries.
	MaxElementRetries int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns the default procedure configuration.
func DefaultConfig() Config {
	return Config{
		ElementAttributes: wire.AllMediaAttributes,
		MaxElementRetries: DefaultMaxElementRetries,
	}
}

// Orchestrator sequences the post-connect discovery procedure.
type Orchestrator struct {
	config   Config
	sender   Sender
	reporter Reporter
	registry *notification.Registry
	logger   *slog.Logger

	phase    Phase
	features wire.Features
	started  bool
	complete bool

	settings       accumulator
	elementRetries int
}

// New creates an orchestrator. It takes over the registry's completion
// callback.
func New(sender Sender, reporter Reporter, registry *notification.Registry, config Config) *Orchestrator {
	if len(config.ElementAttributes) == 0 {
		config.ElementAttributes = wire.AllMediaAttributes
	}
	if config.MaxElementRetries == 0 {
		config.MaxElementRetries = DefaultMaxElementRetries
	}
	o := &Orchestrator{
		config:   config,
		sender:   sender,
		reporter: reporter,
		registry: registry,
		logger:   config.Logger,
	}
	registry.OnComplete(o.registrationComplete)
	return o
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	return o.phase
}

// Started reports whether Start has run since the last Reset.
func (o *Orchestrator) Started() bool {
	return o.started
}

// Complete reports whether the procedure has completed. It stays true until
// Reset.
func (o *Orchestrator) Complete() bool {
	return o.complete
}

// Start begins the procedure for a peer with the given features. It runs at
// most once per connection; later calls are no-ops.
func (o *Orchestrator) Start(features wire.Features) error {
	if o.started {
		return nil
	}
	o.started = true
	o.features = features

	if !features.Has(wire.FeatureMetadata | wire.FeatureVendor) {
		o.debugLog("procedure: peer lacks metadata support, skipping", "features", features.String())
		o.complete = true
		o.setPhase(PhaseComplete)
		return nil
	}

	o.setPhase(PhaseQueryCompanyID)
	return o.send(wire.NewGetCapabilities(wire.CapabilityCompanyID))
}

// Reset returns the orchestrator to Idle. Used on disconnect.
func (o *Orchestrator) Reset() {
	o.phase = PhaseIdle
	o.features = 0
	o.started = false
	o.complete = false
	o.settings = accumulator{}
	o.elementRetries = 0
}

// HandleResponse processes a response (or synthesized timeout) for one of
// the procedure's PDUs.
func (o *Orchestrator) HandleResponse(rsp *wire.Response) error {
	if !o.started {
		return ErrNotStarted
	}
	if rsp.Status.IsError() {
		o.debugLog("procedure: step failed",
			"pdu", rsp.PDU.String(),
			"status", rsp.Status.String(),
			"phase", o.phase.String())
	}

	switch rsp.PDU {
	case wire.PduGetCapabilities:
		return o.handleCapabilities(rsp)
	case wire.PduListAppAttr:
		return o.handleAppAttrList(rsp)
	case wire.PduListAppValues:
		return o.handleAppValues(rsp)
	case wire.PduGetAppAttrText:
		return o.handleAppAttrText(rsp)
	case wire.PduGetAppValueText:
		return o.handleAppValueText(rsp)
	case wire.PduGetCurrentAppValues:
		return o.handleCurrentValues(rsp)
	case wire.PduGetElementAttributes:
		return o.handleElementAttributes(rsp)
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedResponse, rsp.PDU)
	}
}

// FetchElementAttributes requests element attributes of the current track
// without touching the procedure phase. Used on track changes.
func (o *Orchestrator) FetchElementAttributes() error {
	if !o.started {
		return ErrNotStarted
	}
	return o.send(wire.NewGetElementAttributes(o.config.ElementAttributes))
}

func (o *Orchestrator) handleCapabilities(rsp *wire.Response) error {
	res, _ := rsp.Params.(*wire.CapabilityResult)

	phase := o.phase
	if phase != PhaseQueryCompanyID && phase != PhaseQueryEventsSupported {
		return o.unexpected(rsp)
	}
	// The result's capability ID wins over the phase: a target may answer
	// the company ID query with its event list.
	if res != nil && !rsp.Status.IsError() {
		switch res.CapabilityID {
		case wire.CapabilityCompanyID:
			phase = PhaseQueryCompanyID
		case wire.CapabilityEventsSupported:
			phase = PhaseQueryEventsSupported
		}
	}

	switch phase {
	case PhaseQueryCompanyID:
		if res != nil {
			o.debugLog("procedure: company ids", "count", len(res.CompanyIDs))
		}
		o.setPhase(PhaseQueryEventsSupported)
		return o.send(wire.NewGetCapabilities(wire.CapabilityEventsSupported))

	default:
		var events []wire.EventID
		if res != nil && !rsp.Status.IsError() {
			events = res.Events
		}
		o.setPhase(PhaseRegisteringEvents)
		// Load may complete synchronously and move the phase on.
		return o.registry.Load(events)
	}
}

// registrationComplete is the registry completion callback.
func (o *Orchestrator) registrationComplete() {
	if o.phase != PhaseRegisteringEvents {
		return
	}
	if !o.features.Has(wire.FeatureAppSetting) {
		o.debugLog("procedure: app settings not supported")
		o.finish()
		return
	}
	o.setPhase(PhaseQueryAppAttrList)
	if err := o.send(wire.NewListAppAttr()); err != nil {
		o.debugLog("procedure: list app attr failed", "error", err)
	}
}

func (o *Orchestrator) handleAppAttrList(rsp *wire.Response) error {
	if o.phase != PhaseQueryAppAttrList {
		return o.unexpected(rsp)
	}
	list, _ := rsp.Params.(*wire.AppAttrList)
	if rsp.Status.IsError() || list == nil || len(list.AttrIDs) == 0 {
		return o.finish()
	}

	o.settings = accumulator{}
	for _, id := range list.AttrIDs {
		o.settings.add(id)
	}
	o.setPhase(PhaseQueryAppAttrValues)
	attr, _ := o.settings.currentValueQuery()
	return o.send(wire.NewListAppValues(attr))
}

func (o *Orchestrator) handleAppValues(rsp *wire.Response) error {
	if o.phase != PhaseQueryAppAttrValues {
		return o.unexpected(rsp)
	}
	var values []uint8
	if list, ok := rsp.Params.(*wire.AppValueList); ok && !rsp.Status.IsError() {
		values = list.Values
	}
	o.settings.storeValues(values)

	if attr, ok := o.settings.currentValueQuery(); ok {
		return o.send(wire.NewListAppValues(attr))
	}
	if len(o.settings.extended) == 0 {
		o.reporter.PlayerSettings(o.settings.result(false))
		return o.queryCurrentValues(o.settings.ids(false))
	}
	o.setPhase(PhaseQueryAppAttrText)
	return o.send(wire.NewGetAppAttrText(o.settings.extendedIDs()))
}

func (o *Orchestrator) handleAppAttrText(rsp *wire.Response) error {
	if o.phase != PhaseQueryAppAttrText {
		return o.unexpected(rsp)
	}
	list, _ := rsp.Params.(*wire.TextList)
	if rsp.Status.IsError() || list == nil {
		return o.dropExtended()
	}
	o.settings.storeAttrText(list.Entries)

	o.settings.textIndex = 0
	o.setPhase(PhaseQueryAppValueText)
	ext := o.settings.extended[0]
	return o.send(wire.NewGetAppValueText(ext.AttrID, ext.Values))
}

func (o *Orchestrator) handleAppValueText(rsp *wire.Response) error {
	if o.phase != PhaseQueryAppValueText {
		return o.unexpected(rsp)
	}
	list, _ := rsp.Params.(*wire.TextList)
	if rsp.Status.IsError() || list == nil {
		return o.dropExtended()
	}
	o.settings.storeValueText(list.Entries)

	o.settings.textIndex++
	if o.settings.textIndex < len(o.settings.extended) {
		ext := o.settings.extended[o.settings.textIndex]
		return o.send(wire.NewGetAppValueText(ext.AttrID, ext.Values))
	}
	o.reporter.PlayerSettings(o.settings.result(true))
	return o.queryCurrentValues(o.settings.ids(true))
}

// dropExtended abandons target-defined attributes after a failed text query
// and carries on with the standard ones.
func (o *Orchestrator) dropExtended() error {
	o.debugLog("procedure: dropping extended attributes", "count", len(o.settings.extended))
	o.settings.extended = nil
	o.settings.textIndex = 0
	o.reporter.PlayerSettings(o.settings.result(false))
	return o.queryCurrentValues(o.settings.ids(false))
}

func (o *Orchestrator) queryCurrentValues(ids []wire.AppAttrID) error {
	if len(ids) == 0 {
		return o.finish()
	}
	o.setPhase(PhaseQueryCurrentAppValues)
	return o.send(wire.NewGetCurrentAppValues(ids))
}

func (o *Orchestrator) handleCurrentValues(rsp *wire.Response) error {
	if o.phase != PhaseQueryCurrentAppValues {
		return o.unexpected(rsp)
	}
	if vals, ok := rsp.Params.(*wire.AppSettingValues); ok && !rsp.Status.IsError() {
		o.reporter.PlayerSettingsChanged(vals.Values)
	}
	return o.finish()
}

// finish marks the procedure complete and fetches the current track.
func (o *Orchestrator) finish() error {
	if o.complete {
		return nil
	}
	o.complete = true
	o.settings = accumulator{}
	o.elementRetries = 0
	o.setPhase(PhaseQueryElementAttributes)
	return o.send(wire.NewGetElementAttributes(o.config.ElementAttributes))
}

func (o *Orchestrator) handleElementAttributes(rsp *wire.Response) error {
	if rsp.Status == wire.StatusTimeout {
		if o.config.MaxElementRetries > 0 && o.elementRetries < o.config.MaxElementRetries {
			o.elementRetries++
			o.debugLog("procedure: retrying element attributes", "attempt", o.elementRetries)
			return o.send(wire.NewGetElementAttributes(o.config.ElementAttributes))
		}
	}
	o.elementRetries = 0
	if attrs, ok := rsp.Params.(*wire.ElementAttributes); ok && !rsp.Status.IsError() {
		o.reporter.TrackChanged(attrs.Attributes)
	}
	if o.phase == PhaseQueryElementAttributes {
		o.setPhase(PhaseComplete)
	}
	return nil
}

func (o *Orchestrator) unexpected(rsp *wire.Response) error {
	return fmt.Errorf("%w: %s in %s", ErrUnexpectedResponse, rsp.PDU, o.phase)
}

func (o *Orchestrator) send(cmd *wire.Command) error {
	if err := o.sender.Send(cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.PDU, err)
	}
	return nil
}

func (o *Orchestrator) setPhase(p Phase) {
	if o.phase == p {
		return
	}
	from := o.phase
	o.phase = p
	o.debugLog("procedure: phase", "from", from.String(), "to", p.String())
	o.reporter.PhaseChanged(from, p)
}

func (o *Orchestrator) debugLog(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}
