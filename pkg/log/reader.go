package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Filter selects capture events. Every set field must match; a zero Filter
// matches everything.
type Filter struct {
	// ConnectionID filters by exact connection ID match.
	ConnectionID string

	// Direction filters by message direction.
	Direction *Direction

	// Layer filters by protocol layer.
	Layer *Layer

	// Category filters by event category.
	Category *Category

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time

	// PeerAddr filters by peer address.
	PeerAddr string

	// PDU filters message events by PDU ID.
	PDU *wire.PduID

	// Label filters message and transaction events by transaction label.
	Label *uint8
}

func (f *Filter) matches(event Event) bool {
	if f.ConnectionID != "" && event.ConnectionID != f.ConnectionID {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.PeerAddr != "" && event.PeerAddr != f.PeerAddr {
		return false
	}
	if f.PDU != nil && (event.Message == nil || event.Message.PDU != *f.PDU) {
		return false
	}
	if f.Label != nil && eventLabel(event) != int(*f.Label) {
		return false
	}
	return true
}

// eventLabel returns the transaction label an event refers to, or -1.
func eventLabel(event Event) int {
	switch {
	case event.Message != nil:
		return int(event.Message.Label)
	case event.Transaction != nil:
		return int(event.Transaction.Label)
	default:
		return -1
	}
}

// Reader streams events back out of a capture, skipping those the filter
// rejects.
type Reader struct {
	in      io.ReadCloser
	dec     *cbor.Decoder
	filter  Filter
	scanned int
}

// NewReader opens a capture file and yields every event in it.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a capture file and yields the events matching
// filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(f, filter), nil
}

// NewStreamReader reads capture records from in. Close closes in.
func NewStreamReader(in io.ReadCloser, filter Filter) *Reader {
	return &Reader{in: in, dec: NewDecoder(in), filter: filter}
}

// Next returns the next matching event, or io.EOF at the end of the capture.
// A record cut short by a crash surfaces as a decode error.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.dec.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		r.scanned++
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Scanned returns how many records have been decoded, matching or not.
func (r *Reader) Scanned() int {
	return r.scanned
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	return r.in.Close()
}
