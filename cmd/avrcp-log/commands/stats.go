package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	CommandsByPDU     map[wire.PduID]int
	Transactions      map[log.TransactionAction]int
	RejectedResponses int
	MaxLabelsInUse    int
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	PeerAddr  string
	Role      log.Role

	// RoundTrips counts responses with a measured round trip.
	RoundTrips   int
	MaxRoundTrip time.Duration
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		CommandsByPDU:     make(map[wire.PduID]int),
		Transactions:      make(map[log.TransactionAction]int),
		Connections:       make(map[string]*ConnectionStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Role:      event.LocalRole,
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if event.PeerAddr != "" && conn.PeerAddr == "" {
		conn.PeerAddr = event.PeerAddr
		conn.Role = event.LocalRole
	}

	if msg := event.Message; msg != nil {
		switch msg.Type {
		case log.MessageTypeCommand:
			s.CommandsByPDU[msg.PDU]++
		case log.MessageTypeResponse:
			if msg.Code == wire.CodeRejected || msg.Code == wire.CodeNotImplemented {
				s.RejectedResponses++
			}
			if msg.RoundTrip != nil {
				conn.RoundTrips++
				if *msg.RoundTrip > conn.MaxRoundTrip {
					conn.MaxRoundTrip = *msg.RoundTrip
				}
			}
		}
	}

	if tx := event.Transaction; tx != nil {
		s.Transactions[tx.Action]++
		if tx.InUse > s.MaxLabelsInUse {
			s.MaxLabelsInUse = tx.InUse
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== AVRCP Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryTransaction, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.CommandsByPDU) > 0 {
		fmt.Fprintln(w, "Commands by PDU:")
		pdus := make([]wire.PduID, 0, len(stats.CommandsByPDU))
		for pdu := range stats.CommandsByPDU {
			pdus = append(pdus, pdu)
		}
		sort.Slice(pdus, func(i, j int) bool { return pdus[i] < pdus[j] })
		for _, pdu := range pdus {
			name := pdu.String()
			if pdu == wire.PduNone {
				name = "PASS_THROUGH"
			}
			fmt.Fprintf(w, "  %-24s %d\n", name+":", stats.CommandsByPDU[pdu])
		}
		fmt.Fprintln(w)
	}

	if len(stats.Transactions) > 0 {
		fmt.Fprintln(w, "Transactions:")
		for _, action := range []log.TransactionAction{log.TransactionAcquire, log.TransactionRelease, log.TransactionTimeout, log.TransactionExhausted} {
			if count := stats.Transactions[action]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", action.String()+":", count)
			}
		}
		fmt.Fprintf(w, "  Peak labels in use: %d\n", stats.MaxLabelsInUse)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.PeerAddr != "" {
				fmt.Fprintf(w, "           Peer: %s (local %s)\n", c.stats.PeerAddr, c.stats.Role.String())
			}
			if c.stats.RoundTrips > 0 {
				fmt.Fprintf(w, "           Responses: %d (slowest %s)\n",
					c.stats.RoundTrips, formatDuration(c.stats.MaxRoundTrip))
			}
		}
	}

	if stats.RejectedResponses > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Rejected Responses: %d\n", stats.RejectedResponses)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
