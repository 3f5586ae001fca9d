package wire

// Discriminant bytes for the host-to-device Message sum type. Explicit and
// small so the grammar can grow additively (spec.md §4.1).
const (
	tagGetStatus             byte = 0
	tagResetToFirmwareUpdate byte = 1
	tagStreamLightLevel      byte = 2
	tagSendHidReport         byte = 3
	tagRunScenario           byte = 4
)

// Discriminant bytes for the device-to-host message payload.
const (
	tagStatus            byte = 0
	tagCurrentLightLevel byte = 1
	tagBufferedMoment    byte = 2
	tagPanicChunk        byte = 3
)

const (
	tagHidMouse    byte = 0
	tagHidKeyboard byte = 1
)

const (
	tagEventLightLevel byte = 0
	tagEventHidReport  byte = 1
)

const (
	tagStepHidRequest byte = 0
	tagStepWait       byte = 1
)

// MaxScenarioSteps bounds both the host-side canonical scenario and the
// device wire form (spec.md §3).
const MaxScenarioSteps = 16

// MaxScenarioDurationMs bounds the sum of test-step wait durations.
const MaxScenarioDurationMs = 5000

// MaxLightLevel is the empirically observed ADC ceiling, reported in Status.
const MaxLightLevel = uint32(1<<23 - 1)

// Message is the host-to-device request payload.
type Message interface {
	reqTag() byte
}

type GetStatus struct{}

type ResetToFirmwareUpdate struct{}

type StreamLightLevel struct {
	DurationMs uint16
}

type SendHidReport struct {
	Report HidRequest
}

type RunScenario struct {
	Scenario DeviceScenario
}

func (GetStatus) reqTag() byte             { return tagGetStatus }
func (ResetToFirmwareUpdate) reqTag() byte { return tagResetToFirmwareUpdate }
func (StreamLightLevel) reqTag() byte      { return tagStreamLightLevel }
func (SendHidReport) reqTag() byte         { return tagSendHidReport }
func (RunScenario) reqTag() byte           { return tagRunScenario }

// DeviceMessage is the payload carried by a device-to-host Reply.
type DeviceMessage interface {
	respTag() byte
}

type Status struct {
	Hardware      uint8
	FirmwareHash  [5]byte
	FirmwareDirty bool
	MaxLightLevel uint32
	SerialNumber  [8]byte
}

type CurrentLightLevel struct {
	Level uint32
}

type BufferedMoment struct {
	Microsecond uint32
	Event       Event
	Idx         uint16
	Total       uint16
}

type PanicChunk struct {
	Data []byte
}

func (Status) respTag() byte            { return tagStatus }
func (CurrentLightLevel) respTag() byte { return tagCurrentLightLevel }
func (BufferedMoment) respTag() byte    { return tagBufferedMoment }
func (PanicChunk) respTag() byte        { return tagPanicChunk }

// HidReport is the sum type of simulated input reports.
type HidReport interface {
	hidTag() byte
}

type Mouse struct {
	Buttons byte
	X, Y    int8
	Wheel   int8
	Pan     int8
}

type Keyboard struct {
	Modifier byte
	Keycodes [6]byte
}

func (Mouse) hidTag() byte    { return tagHidMouse }
func (Keyboard) hidTag() byte { return tagHidKeyboard }

// HidRequest pairs a report with the per-scenario index the device will
// echo back as an Event when the report is emitted while recording.
type HidRequest struct {
	ID     uint8
	Report HidReport
}

// Event is the sum type stored in the event buffer.
type Event interface {
	eventTag() byte
}

type EventLightLevel uint32

type EventHidReport uint8

func (EventLightLevel) eventTag() byte { return tagEventLightLevel }
func (EventHidReport) eventTag() byte  { return tagEventHidReport }

// Step is the device wire form of one scenario instruction. StartTiming is
// not a step; it is recorded out-of-band as DeviceScenario.StartRecordingAtIdx.
type Step interface {
	stepTag() byte
}

type StepHidRequest struct {
	Request HidRequest
}

type StepWait struct {
	Ms uint16
}

func (StepHidRequest) stepTag() byte { return tagStepHidRequest }
func (StepWait) stepTag() byte       { return tagStepWait }

// DeviceScenario is the wire form of a scenario, produced by
// internal/scenario's validator/converter.
type DeviceScenario struct {
	StartRecordingAtIdx *uint8
	Steps               []Step
}

// Envelope is the host-to-device wire unit: a request tagged with the id the
// dispatcher will use to correlate replies.
type Envelope struct {
	RequestID uint32
	Request   Message
}

// Reply is the device-to-host wire unit. Failed true corresponds to the
// device reporting Err(()); Payload nil with Failed false is Ok(None).
type Reply struct {
	RequestID uint32
	Failed    bool
	Payload   DeviceMessage
}
