package procedure

import "github.com/rcctl/avrcp-go/pkg/wire"

// PlayerSetting is one player application setting attribute and its allowed
// values.
type PlayerSetting struct {
	AttrID wire.AppAttrID
	Values []uint8

	// Text and ValueText are only filled for target-defined attributes.
	Text      string
	ValueText map[uint8]string
}

// PlayerSettings is the result of the application settings walk.
type PlayerSettings struct {
	Standard []PlayerSetting
	Extended []PlayerSetting
}

// accumulator collects settings across the multi-round walk.
type accumulator struct {
	standard []PlayerSetting
	extended []PlayerSetting

	// Cursors: values are listed standard first, then extended. textIndex
	// walks extended attributes during value text queries.
	valueIndex int
	textIndex  int
}

func (a *accumulator) add(id wire.AppAttrID) {
	s := PlayerSetting{AttrID: id}
	if id.IsExtended() {
		a.extended = append(a.extended, s)
		return
	}
	a.standard = append(a.standard, s)
}

// at returns the attribute at the combined value cursor.
func (a *accumulator) at(i int) *PlayerSetting {
	if i < len(a.standard) {
		return &a.standard[i]
	}
	i -= len(a.standard)
	if i < len(a.extended) {
		return &a.extended[i]
	}
	return nil
}

// currentValueQuery returns the attribute whose values are to be listed next.
func (a *accumulator) currentValueQuery() (wire.AppAttrID, bool) {
	s := a.at(a.valueIndex)
	if s == nil {
		return 0, false
	}
	return s.AttrID, true
}

// storeValues records values for the current attribute and advances.
func (a *accumulator) storeValues(values []uint8) {
	if s := a.at(a.valueIndex); s != nil {
		s.Values = values
		a.valueIndex++
	}
}

func (a *accumulator) storeAttrText(entries []wire.TextEntry) {
	for _, e := range entries {
		for i := range a.extended {
			if a.extended[i].AttrID == wire.AppAttrID(e.ID) {
				a.extended[i].Text = e.Text
				break
			}
		}
	}
}

func (a *accumulator) storeValueText(entries []wire.TextEntry) {
	if a.textIndex >= len(a.extended) {
		return
	}
	s := &a.extended[a.textIndex]
	if s.ValueText == nil {
		s.ValueText = make(map[uint8]string, len(entries))
	}
	for _, e := range entries {
		s.ValueText[e.ID] = e.Text
	}
}

func (a *accumulator) extendedIDs() []wire.AppAttrID {
	ids := make([]wire.AppAttrID, 0, len(a.extended))
	for _, s := range a.extended {
		ids = append(ids, s.AttrID)
	}
	return ids
}

func (a *accumulator) ids(withExtended bool) []wire.AppAttrID {
	ids := make([]wire.AppAttrID, 0, len(a.standard)+len(a.extended))
	for _, s := range a.standard {
		ids = append(ids, s.AttrID)
	}
	if withExtended {
		ids = append(ids, a.extendedIDs()...)
	}
	return ids
}

func (a *accumulator) result(withExtended bool) PlayerSettings {
	out := PlayerSettings{Standard: append([]PlayerSetting(nil), a.standard...)}
	if withExtended {
		out.Extended = append([]PlayerSetting(nil), a.extended...)
	}
	return out
}
