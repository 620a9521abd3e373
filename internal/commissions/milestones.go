package commissions

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMilestone is returned when an index outside 1..3 reaches the boundary
var ErrInvalidMilestone = errors.New("milestone must be 1, 2 or 3")

// Milestone is one of the three installment stages of a financed sale.
// Only MilestoneInitial, MilestoneSecond and MilestoneFinal are valid;
// the zero value is a programming error.
type Milestone struct {
	index uint8
}

var (
	MilestoneInitial = Milestone{index: 1}
	MilestoneSecond  = Milestone{index: 2}
	MilestoneFinal   = Milestone{index: 3}
)

// MilestoneFromIndex converts an external 1-based index
func MilestoneFromIndex(i int) (Milestone, error) {
	switch i {
	case 1:
		return MilestoneInitial, nil
	case 2:
		return MilestoneSecond, nil
	case 3:
		return MilestoneFinal, nil
	}
	return Milestone{}, fmt.Errorf("%w: got %d", ErrInvalidMilestone, i)
}

// Index returns the 1-based stage number. It panics on the zero value.
func (m Milestone) Index() int {
	if m.index < 1 || m.index > 3 {
		panic("commissions: use of invalid Milestone")
	}
	return int(m.index)
}

// IsZero reports whether m is the unset zero value
func (m Milestone) IsZero() bool {
	return m.index == 0
}

// IsFinal reports whether m is the last installment
func (m Milestone) IsFinal() bool {
	return m.index == 3
}

func (m Milestone) String() string {
	switch m.index {
	case 1:
		return "initial"
	case 2:
		return "second"
	case 3:
		return "final"
	}
	return "invalid"
}

func (m Milestone) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(m.index))
}

func (m *Milestone) UnmarshalJSON(b []byte) error {
	var i int
	if err := json.Unmarshal(b, &i); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMilestone, err)
	}
	parsed, err := MilestoneFromIndex(i)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
