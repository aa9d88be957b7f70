package gantt

import (
	"regexp"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

type ID struct {
	value uuid.UUID
}

func NewID() ID {
	v := ID{value: uuid.Must(uuid.NewV4())}
	if err := v.validate(); err != nil {
		panic(err)
	}
	return v
}

func ParseID(s string) (ID, error) {
	u, err := uuid.FromString(s)
	if err != nil {
		return ID{}, errors.Wrap(err, "Parse id")
	}
	v := ID{value: u}
	return v, v.validate()
}

var emptyUUIDRegexp = regexp.MustCompile(`^[0-]+$`)

func (v ID) validate() error {
	isEmpty := emptyUUIDRegexp.MatchString(v.String())
	if isEmpty {
		return errors.New("Empty uuid found")
	}
	if v.value.Version() != uuid.V4 {
		return errors.New("Invalid uuid version")
	}
	return nil
}

func (v ID) IsValid() bool {
	return v.validate() == nil
}

func (v ID) String() string {
	return v.value.String()
}

func (v ID) IsEqual(v2 ID) bool {
	return v.String() == v2.String()
}

// RunID identifies one Solve call on a problem.
type RunID = ID

func NewRunID() RunID {
	return RunID(NewID())
}

type ProblemState string

const (
	StateBuilding   ProblemState = "Building"
	StateSolving    ProblemState = "Solving"
	StateSolved     ProblemState = "Solved"
	StateInfeasible ProblemState = "Infeasible"
)

func (s ProblemState) IsFrozen() bool {
	return s != StateBuilding
}

type NumericKind string

const (
	Integer NumericKind = "Integer"
	Real    NumericKind = "Real"
)

func ParseNumericKind(s string) (NumericKind, error) {
	switch NumericKind(s) {
	case Integer, "":
		return Integer, nil
	case Real:
		return Real, nil
	}
	return "", errors.Wrapf(ErrInvalidArgument, "Numeric kind %q", s)
}

type Direction string

const (
	Minimize Direction = "Minimize"
	Maximize Direction = "Maximize"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Minimize, "minimize", "min":
		return Minimize, nil
	case Maximize, "maximize", "max":
		return Maximize, nil
	}
	return "", errors.Wrapf(ErrInvalidArgument, "Objective direction %q", s)
}

type SolveStatus string

const (
	StatusSat     SolveStatus = "Sat"
	StatusUnsat   SolveStatus = "Unsat"
	StatusUnknown SolveStatus = "Unknown"
)

func (s SolveStatus) String() string {
	return string(s)
}

type Strategy string

const (
	StrategyLinear Strategy = "linear"
	StrategyBinary Strategy = "binary"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLinear, "":
		return StrategyLinear, nil
	case StrategyBinary:
		return StrategyBinary, nil
	}
	return "", errors.Wrapf(ErrInvalidArgument, "Search strategy %q", s)
}

// Interval is a half-open [Start, End) period on the time axis.
type Interval struct {
	Start int64 `json:"start" msgpack:"start" yaml:"start"`
	End   int64 `json:"end" msgpack:"end" yaml:"end"`
}

func NewInterval(start, end int64) Interval {
	return Interval{Start: start, End: end}
}

func (v Interval) Length() int64 {
	return v.End - v.Start
}

func (v Interval) Overlaps(v2 Interval) bool {
	return v.Start < v2.End && v2.Start < v.End
}
