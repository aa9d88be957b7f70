package gantt

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

type Marshal func(interface{}) ([]byte, error)

type Unmarshal func([]byte, interface{}) error

type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatYAML    Format = "yaml"
)

var codecs = map[Format]struct {
	marshal   Marshal
	unmarshal Unmarshal
}{
	FormatJSON:    {marshal: marshalJSON, unmarshal: json.Unmarshal},
	FormatMsgpack: {marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal},
	FormatYAML:    {marshal: yaml.Marshal, unmarshal: yaml.Unmarshal},
}

func marshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if f == "yml" {
		f = FormatYAML
	}
	if _, ok := codecs[f]; !ok {
		return "", errors.Wrapf(ErrFormat, "%q", s)
	}
	return f, nil
}

// SolutionDocument is the serializable form of a Solution.
type SolutionDocument struct {
	Problem    string            `json:"problem" msgpack:"problem" yaml:"problem"`
	Status     SolveStatus       `json:"status" msgpack:"status" yaml:"status"`
	Feasible   bool              `json:"feasible" msgpack:"feasible" yaml:"feasible"`
	Optimal    bool              `json:"optimal" msgpack:"optimal" yaml:"optimal"`
	Horizon    int64             `json:"horizon,omitempty" msgpack:"horizon,omitempty" yaml:"horizon,omitempty"`
	Makespan   int64             `json:"makespan,omitempty" msgpack:"makespan,omitempty" yaml:"makespan,omitempty"`
	Objective  *int64            `json:"objective,omitempty" msgpack:"objective,omitempty" yaml:"objective,omitempty"`
	Tasks      []TaskResult      `json:"tasks,omitempty" msgpack:"tasks,omitempty" yaml:"tasks,omitempty"`
	Resources  []ResourceResult  `json:"resources,omitempty" msgpack:"resources,omitempty" yaml:"resources,omitempty"`
	Indicators []IndicatorResult `json:"indicators,omitempty" msgpack:"indicators,omitempty" yaml:"indicators,omitempty"`
}

func NewSolutionDocument(s Solution) SolutionDocument {
	doc := SolutionDocument{
		Problem:  s.problem,
		Status:   s.status,
		Feasible: s.feasible,
		Optimal:  s.optimal,
	}
	if !s.feasible {
		return doc
	}

	doc.Horizon = s.horizon
	doc.Makespan = s.makespan
	if s.objective != nil {
		v := *s.objective
		doc.Objective = &v
	}
	doc.Tasks, _ = s.Tasks()
	doc.Resources, _ = s.Resources()
	doc.Indicators, _ = s.Indicators()
	return doc
}

func MarshalSolution(s Solution, f Format) ([]byte, error) {
	c, ok := codecs[f]
	if !ok {
		return nil, errors.Wrapf(ErrFormat, "%q", f)
	}
	data, err := c.marshal(NewSolutionDocument(s))
	if err != nil {
		return nil, errors.Wrapf(err, "Marshal solution of %s", s.problem)
	}
	return data, nil
}

func UnmarshalSolutionDocument(data []byte, f Format) (SolutionDocument, error) {
	c, ok := codecs[f]
	if !ok {
		return SolutionDocument{}, errors.Wrapf(ErrFormat, "%q", f)
	}
	doc := SolutionDocument{}
	if err := c.unmarshal(data, &doc); err != nil {
		return SolutionDocument{}, errors.Wrap(err, "Unmarshal solution")
	}
	return doc, nil
}
