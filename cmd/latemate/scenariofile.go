package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/late-mate/late-mate/internal/scenario"
	"github.com/late-mate/late-mate/internal/wire"
)

// scenarioFile is the JSON shape accepted by the "run" subcommand, a Go
// rendering of the step/report sum types original_source's
// late-mate-device/src/scenario.rs and late-mate-shared/src/types/hid.rs
// describe (field names chosen for this CLI, not a byte-for-byte port of
// the Rust JSON wire format).
type scenarioFile struct {
	Test           []stepDTO `json:"test"`
	Revert         []stepDTO `json:"revert,omitempty"`
	Repeats        uint64    `json:"repeats"`
	DelayBetweenMs struct {
		Lo uint32 `json:"lo"`
		Hi uint32 `json:"hi"`
	} `json:"delay_between_ms"`
}

type stepDTO struct {
	Type string `json:"type"`
	// "wait"
	Ms uint16 `json:"ms,omitempty"`
	// "hid_report"
	Report *hidReportDTO `json:"report,omitempty"`
}

type hidReportDTO struct {
	Kind     string  `json:"kind"`
	Buttons  byte    `json:"buttons,omitempty"`
	X        int8    `json:"x,omitempty"`
	Y        int8    `json:"y,omitempty"`
	Wheel    int8    `json:"wheel,omitempty"`
	Pan      int8    `json:"pan,omitempty"`
	Modifier byte    `json:"modifier,omitempty"`
	Keycodes [6]byte `json:"keycodes,omitempty"`
}

func loadScenarioFile(path string) (scenario.Scenario, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return scenario.Scenario{}, fmt.Errorf("open scenario file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var sf scenarioFile
	if err := json.NewDecoder(r).Decode(&sf); err != nil {
		return scenario.Scenario{}, fmt.Errorf("decode scenario file: %w", err)
	}

	test, err := stepsFromDTO(sf.Test)
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("test section: %w", err)
	}
	var revert []scenario.Step
	if sf.Revert != nil {
		revert, err = stepsFromDTO(sf.Revert)
		if err != nil {
			return scenario.Scenario{}, fmt.Errorf("revert section: %w", err)
		}
	}

	return scenario.Scenario{
		Test:           test,
		Revert:         revert,
		Repeats:        sf.Repeats,
		DelayBetweenMs: scenario.DelayRange{Lo: sf.DelayBetweenMs.Lo, Hi: sf.DelayBetweenMs.Hi},
	}, nil
}

func stepsFromDTO(steps []stepDTO) ([]scenario.Step, error) {
	out := make([]scenario.Step, 0, len(steps))
	for i, s := range steps {
		switch s.Type {
		case "wait":
			out = append(out, scenario.Wait{Ms: s.Ms})
		case "start_timing":
			out = append(out, scenario.StartTiming{})
		case "hid_report":
			if s.Report == nil {
				return nil, fmt.Errorf("step %d: hid_report missing \"report\"", i)
			}
			report, err := hidReportFromDTO(*s.Report)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			out = append(out, scenario.HidReport{Report: report})
		default:
			return nil, fmt.Errorf("step %d: unknown type %q", i, s.Type)
		}
	}
	return out, nil
}

func hidReportFromDTO(d hidReportDTO) (wire.HidReport, error) {
	switch d.Kind {
	case "mouse":
		return wire.Mouse{Buttons: d.Buttons, X: d.X, Y: d.Y, Wheel: d.Wheel, Pan: d.Pan}, nil
	case "keyboard":
		return wire.Keyboard{Modifier: d.Modifier, Keycodes: d.Keycodes}, nil
	default:
		return nil, fmt.Errorf("unknown hid report kind %q", d.Kind)
	}
}
