package events

import "fmt"

// GTIExtension names the good-time-interval table of an event file.
const GTIExtension = "GTI"

// GTI columns, in mission elapsed seconds.
const (
	GTIStartColumn = "START"
	GTIStopColumn  = "STOP"
)

// GTI is the set of good time intervals covered by an event file.
type GTI struct {
	Start []float64
	Stop  []float64
}

// NewGTI checks that start and stop pair up and that no interval is reversed.
func NewGTI(start, stop []float64) (*GTI, error) {
	if len(start) != len(stop) {
		return nil, fmt.Errorf("%w: %d starts, %d stops", ErrInvalidGTI, len(start), len(stop))
	}
	for i := range start {
		if stop[i] < start[i] {
			return nil, fmt.Errorf("%w: interval %d ends before it starts", ErrInvalidGTI, i)
		}
	}
	return &GTI{
		Start: append([]float64(nil), start...),
		Stop:  append([]float64(nil), stop...),
	}, nil
}

// GTIFromTable reads the START and STOP columns of t.
func GTIFromTable(t *Table) (*GTI, error) {
	start, err := t.Column(GTIStartColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGTI, err)
	}
	stop, err := t.Column(GTIStopColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGTI, err)
	}
	return NewGTI(start.Values, stop.Values)
}

// Len returns the number of intervals.
func (g *GTI) Len() int { return len(g.Start) }

// Exposure returns the summed interval length in seconds.
func (g *GTI) Exposure() float64 {
	var total float64
	for i := range g.Start {
		total += g.Stop[i] - g.Start[i]
	}
	return total
}

// Contains reports whether t falls in [Start, Stop) of any interval.
func (g *GTI) Contains(t float64) bool {
	for i := range g.Start {
		if t >= g.Start[i] && t < g.Stop[i] {
			return true
		}
	}
	return false
}

// Table renders the intervals as a GTI extension table.
func (g *GTI) Table() *Table {
	header := NewHeader(Card{Key: "EXTNAME", Value: GTIExtension, Comment: "good time intervals"})
	t, _ := NewTable(header,
		Column{Name: GTIStartColumn, Format: "D", Unit: "s", Values: g.Start},
		Column{Name: GTIStopColumn, Format: "D", Unit: "s", Values: g.Stop},
	)
	return t
}

// GTI returns the good time intervals stored with the events.
func (e *EventList) GTI() (*GTI, error) {
	ext, ok := e.Table.Extension(GTIExtension)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrExtensionNotFound, GTIExtension, e.Filename)
	}
	return GTIFromTable(ext)
}

// SetGTI stores g as the GTI extension of the events, replacing any present.
func (e *EventList) SetGTI(g *GTI) {
	e.Table.SetExtension(GTIExtension, g.Table())
}
