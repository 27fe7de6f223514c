package participant

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Participant is one entry of the participant table.
type Participant struct {
	Number int    `yaml:"number" json:"number" validate:"gt=0"`
	Name   string `yaml:"name" json:"name" validate:"required"`
	Team   string `yaml:"team" json:"team,omitempty"`
	Color  Color  `yaml:"color" json:"color"`
}

// Table is a read-only participant lookup keyed by number.
type Table struct {
	list     []Participant
	byNumber map[int]int
}

// NewTable builds a table, keeping the given order. Numbers must be unique.
func NewTable(participants []Participant) (*Table, error) {
	t := &Table{
		list:     make([]Participant, 0, len(participants)),
		byNumber: make(map[int]int, len(participants)),
	}
	for _, p := range participants {
		if _, dup := t.byNumber[p.Number]; dup {
			return nil, fmt.Errorf("participant: duplicate number %d", p.Number)
		}
		t.byNumber[p.Number] = len(t.list)
		t.list = append(t.list, p)
	}
	return t, nil
}

// Lookup returns the participant with the given number.
func (t *Table) Lookup(number int) (Participant, bool) {
	i, ok := t.byNumber[number]
	if !ok {
		return Participant{}, false
	}
	return t.list[i], true
}

// Color returns the board color of the participant with the given number.
func (t *Table) Color(number int) (Color, bool) {
	p, ok := t.Lookup(number)
	return p.Color, ok
}

// Numbers returns every participant number in table order.
func (t *Table) Numbers() []int {
	out := make([]int, len(t.list))
	for i, p := range t.list {
		out[i] = p.Number
	}
	return out
}

// All returns a copy of the table.
func (t *Table) All() []Participant {
	out := make([]Participant, len(t.list))
	copy(out, t.list)
	return out
}

// Len returns the number of participants.
func (t *Table) Len() int { return len(t.list) }

type tableFile struct {
	Participants []Participant `yaml:"participants" validate:"required,min=1,dive"`
}

// ParseTable decodes and validates a YAML participant table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, err
	}
	return NewTable(f.Participants)
}

// LoadTable reads a participant table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
