package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Human-readable state dump on SIGUSR1, for operators
 *		diagnosing a stuck bridge without attaching a debugger.
 *
 *---------------------------------------------------------------*/

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StateSnapshot is what gets serialized to YAML.
type StateSnapshot struct {
	Timestamp      time.Time         `yaml:"timestamp"`
	SystemState    string            `yaml:"system_state"`
	ModemState     string            `yaml:"modem_state"`
	SchedulerDir   string            `yaml:"scheduler_direction"`
	Quantum        string            `yaml:"quantum"`
	WeightSerial   float64           `yaml:"weight_serial"`
	WeightTelnet   float64           `yaml:"weight_telnet"`
	SerialPipeline PipelineSnapshot  `yaml:"serial_to_telnet"`
	TelnetPipeline PipelineSnapshot  `yaml:"telnet_to_serial"`
	TelnetState    string            `yaml:"telnet_state"`
}

// PipelineSnapshot is one direction's counters.
type PipelineSnapshot struct {
	BytesIn            uint64 `yaml:"bytes_in"`
	BytesOut           uint64 `yaml:"bytes_out"`
	BytesDropped       uint64 `yaml:"bytes_dropped"`
	BackpressureActive bool   `yaml:"backpressure_active"`
}

// Snapshot captures the current state of the whole L3Context.
func (l *L3Context) Snapshot() StateSnapshot {
	ws, wt := l.scheduler.Weights()
	ss := l.serialPipeline.Stats()
	ts := l.telnetPipeline.Stats()

	return StateSnapshot{
		Timestamp:    time.Now(),
		SystemState:  l.fsm.State().String(),
		ModemState:   l.modem.State().String(),
		SchedulerDir: l.scheduler.Current().String(),
		Quantum:      l.scheduler.Quantum().String(),
		WeightSerial: ws,
		WeightTelnet: wt,
		SerialPipeline: PipelineSnapshot{
			BytesIn: ss.BytesIn, BytesOut: ss.BytesOut, BytesDropped: ss.BytesDropped,
			BackpressureActive: l.serialPipeline.BackpressureActive(),
		},
		TelnetPipeline: PipelineSnapshot{
			BytesIn: ts.BytesIn, BytesOut: ts.BytesOut, BytesDropped: ts.BytesDropped,
			BackpressureActive: l.telnetPipeline.BackpressureActive(),
		},
		TelnetState: l.telnet.State().String(),
	}
}

// DumpSnapshot writes the current state as YAML to w (spec.md's
// operator-diagnostics path, triggered on SIGUSR1 by cmd/tncbridge).
func (l *L3Context) DumpSnapshot(w *os.File) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(l.Snapshot())
}
